package photon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photonerr"
)

func testResult() *loader.Result {
	return &loader.Result{
		Spec: catalog.Spec{
			Name: "greeter",
			Tools: []catalog.Member{
				{Kind: catalog.KindTool, Name: "Echo"},
				{Kind: catalog.KindTool, Name: "Secret", Flags: catalog.Flags{Internal: true}},
			},
			Prompts: []catalog.Member{{Kind: catalog.KindPrompt, Name: "Brief"}},
		},
	}
}

func TestInstance_CatalogSnapshotHidesInternal(t *testing.T) {
	inst := New(testResult())
	snap := inst.CatalogSnapshot()
	require.Len(t, snap.Tools, 1)
	assert.Equal(t, "Echo", snap.Tools[0].Name)
}

func TestInstance_ToolLookupSeesInternal(t *testing.T) {
	inst := New(testResult())
	m, err := inst.Tool("Secret")
	require.NoError(t, err)
	assert.True(t, m.Flags.Internal)

	_, err = inst.Tool("Missing")
	require.Error(t, err)
	assert.Equal(t, photonerr.NotFound, photonerr.KindOf(err))
}

func TestHolder_SwapReturnsPrevious(t *testing.T) {
	first := New(testResult())
	second := New(testResult())
	h := NewHolder(first)
	assert.Same(t, first, h.Get())

	prev := h.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, h.Get())
}
