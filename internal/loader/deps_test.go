package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDependencies(t *testing.T) {
	src := `// Package photon implements a weather lookup.
//
//photon:require github.com/example/weatherclient v1.4.0
//photon:require golang.org/x/text v0.14.0
package photon

type Weather struct{}
`
	deps, err := parseDependencies(src)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, Dependency{Module: "github.com/example/weatherclient", Version: "v1.4.0"}, deps[0])
	assert.Equal(t, Dependency{Module: "golang.org/x/text", Version: "v0.14.0"}, deps[1])
}

func TestParseDependencies_None(t *testing.T) {
	deps, err := parseDependencies("package photon\n")
	require.NoError(t, err)
	assert.Empty(t, deps)
}
