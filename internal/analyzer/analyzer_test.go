package analyzer

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/photonerr"
)

const echoSource = `package photon

// Greeter says hello to people.
type Greeter struct {
	// Greeting is the salutation prefix.
	Greeting string ` + "`json:\"greeting\" default:\"Hello\"`" + `
}

// Echo repeats the message back to the caller.
//
//photon:linkedui ui://echo
func (g *Greeter) Echo(args EchoArgs) (string, error) {
	return "Echo: " + args.Message, nil
}

// EchoArgs is the input to Echo.
type EchoArgs struct {
	// Message is the text to echo.
	Message string ` + "`json:\"message\"`" + `
}

// Secret is a hidden diagnostic tool.
//
//photon:internal
func (g *Greeter) Secret(args EchoArgs) (string, error) {
	return "shh", nil
}

// Brief produces a prompt message.
//
//photon:template
func (g *Greeter) Brief(args EchoArgs) (string, error) {
	return "Summarize: " + args.Message, nil
}

// Doc serves a static resource.
//
//photon:static doc://{id}
func (g *Greeter) Doc(args EchoArgs) (string, error) {
	return args.Message, nil
}
`

func TestAnalyze_Echo(t *testing.T) {
	skel, err := Analyze(echoSource)
	require.NoError(t, err)
	require.Equal(t, "greeter", skel.Name)

	require.Len(t, skel.Tools, 2) // Echo, Secret (Secret still appears in the skeleton; catalog hides @internal)
	var echo catalog.Member
	for _, tool := range skel.Tools {
		if tool.Name == "Echo" {
			echo = tool
		}
	}
	require.Equal(t, "Echo", echo.Name)
	require.Equal(t, "ui://echo", echo.LinkedUI)
	props, ok := echo.InputSchema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "message")
	required, _ := echo.InputSchema["required"].([]string)
	assert.Equal(t, []string{"message"}, required)

	require.Len(t, skel.Prompts, 1)
	assert.Equal(t, "Brief", skel.Prompts[0].Name)

	require.Len(t, skel.Resources, 1)
	assert.Equal(t, "doc://{id}", skel.Resources[0].URITemplate)

	require.Len(t, skel.ConfigSchema, 1)
	assert.Equal(t, "Greeting", skel.ConfigSchema[0].Name)
	assert.Equal(t, "Hello", skel.ConfigSchema[0].Default)
	assert.False(t, skel.ConfigSchema[0].Required)
}

func TestAnalyze_InternalFlagged(t *testing.T) {
	skel, err := Analyze(echoSource)
	require.NoError(t, err)
	var secret catalog.Member
	for _, tool := range skel.Tools {
		if tool.Name == "Secret" {
			secret = tool
		}
	}
	assert.True(t, secret.Flags.Internal)
}

func TestAnalyze_UnparseableSource(t *testing.T) {
	_, err := Analyze("this is not go {{{")
	require.Error(t, err)
	assert.Equal(t, photonerr.LoadError, photonerr.KindOf(err))
}

func TestAnalyze_NoRootType(t *testing.T) {
	_, err := Analyze("package photon\n")
	require.Error(t, err)
	assert.Equal(t, photonerr.LoadError, photonerr.KindOf(err))
}

func TestAnalyze_EnumArgument(t *testing.T) {
	src := `package photon

// Light toggles a color.
type Light struct{}

// Color is one of a fixed set of named colors.
type Color string

const (
	Red   Color = "red"
	Green Color = "green"
)

// SetColor changes the light color.
func (l *Light) SetColor(args SetColorArgs) (string, error) {
	return string(args.Color), nil
}

// SetColorArgs is the input to SetColor.
type SetColorArgs struct {
	Color Color ` + "`json:\"color\"`" + `
}
`
	skel, err := Analyze(src)
	require.NoError(t, err)
	require.Len(t, skel.Tools, 1)
	props := skel.Tools[0].InputSchema["properties"].(map[string]any)
	colorSchema := props["color"].(map[string]any)
	assert.ElementsMatch(t, []string{"red", "green"}, colorSchema["enum"])
}

// TestAnalyze_IsPure checks the documented invariant that analyze(source)
// is a pure function of source: repeated analysis of the same text yields
// field-for-field identical skeletons, independent of map iteration order.
func TestAnalyze_IsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	methodNames := gen.OneConstOf("Alpha", "Bravo", "Charlie", "Delta")

	properties.Property("analyzing the same source twice yields equal skeletons", prop.ForAll(
		func(name string) bool {
			src := fmt.Sprintf(`package photon

// Worker does one thing.
type Worker struct{}

// %s performs an operation.
func (w *Worker) %s(args WorkerArgs) (string, error) {
	return args.Input, nil
}

// WorkerArgs is the input to %s.
type WorkerArgs struct {
	Input string `+"`json:\"input\"`"+`
}
`, name, name, name)

			first, err1 := Analyze(src)
			second, err2 := Analyze(src)
			if err1 != nil || err2 != nil {
				return err1 == nil && err2 == nil
			}
			return fmt.Sprintf("%+v", first) == fmt.Sprintf("%+v", second)
		},
		methodNames,
	))

	properties.TestingRun(t)
}
