package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/photon-run/photon/internal/analyzer"
	"github.com/photon-run/photon/internal/photonerr"
)

// compileErrorPattern matches a "go build" diagnostic line of the form
// "path/to/file.go:12:5: undefined: foo".
var compileErrorPattern = regexp.MustCompile(`\.go:(\d+):(\d+): (.+)$`)

// compile builds sourceText as a Go plugin and returns the path to the
// produced .so, which the caller is responsible for moving into the cache.
// It shells out to the installed Go toolchain the same way a source
// photon's build step would in production; this package never calls into
// go/build APIs directly because plugin artifacts must be produced by the
// real compiler, not emulated.
func compile(ctx context.Context, sourceText string, deps []Dependency, workDir string) (string, error) {
	buildDir, err := os.MkdirTemp(workDir, "build-")
	if err != nil {
		return "", fmt.Errorf("create build dir: %w", err)
	}
	defer os.RemoveAll(buildDir)

	srcPath := filepath.Join(buildDir, "photon.go")
	if err := os.WriteFile(srcPath, []byte(sourceText), 0o644); err != nil {
		return "", fmt.Errorf("write source: %w", err)
	}

	sdkDir := filepath.Join(buildDir, "photon")
	if err := os.MkdirAll(sdkDir, 0o755); err != nil {
		return "", fmt.Errorf("create sdk dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sdkDir, "context.go"), []byte(sdkSource), 0o644); err != nil {
		return "", fmt.Errorf("write sdk: %w", err)
	}

	modPath := filepath.Join(buildDir, "go.mod")
	if err := os.WriteFile(modPath, []byte(goModContent(deps)), 0o644); err != nil {
		return "", fmt.Errorf("write go.mod: %w", err)
	}

	outPath := filepath.Join(workDir, filepath.Base(buildDir)+".so")
	cmd := exec.CommandContext(ctx, "go", "build", "-buildmode=plugin", "-o", outPath, srcPath)
	cmd.Dir = buildDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", buildError(stderr.String())
	}
	return outPath, nil
}

// sdkSource is vendored fresh into every photon's isolated build directory
// as photon/context.go, under the same synthetic module as the photon's own
// source. A method that declares a parameter of this shape (by import path
// and name, not by any shared type identity with this runtime, since the
// two are never compiled together) receives the live invocation surface;
// see invocation.surfaceAdapter for the host side of the dispatch.
const sdkSource = `// Package photon is the ambient invocation surface a tool method can
// declare as a parameter to reach progress, logging, elicitation, and
// channel-publish without importing anything outside its own module.
package photon

// Context is the live invocation surface for one tools/call. A method
// accepts it by declaring a parameter of this type; the runtime recognizes
// and supplies it by its shape, not by any shared import.
type Context interface {
	// Progress reports fractional completion of the current invocation.
	Progress(current, total float64, message string)
	// Log sends a message to the client at level "debug", "info",
	// "warning", or "error".
	Log(level, message string)
	// Elicit asks the connected client to collect input matching schema,
	// blocking until it replies or the invocation is cancelled.
	Elicit(message string, schema map[string]any) (map[string]any, error)
	// Publish fans event out to every session subscribed to channel.
	Publish(channel, event string, payload any)
	// Cancelled reports whether the client has requested cancellation.
	Cancelled() bool
}
`

func goModContent(deps []Dependency) string {
	buf := bytes.Buffer{}
	buf.WriteString("module photon.local/generated\n\ngo 1.25\n")
	for _, d := range deps {
		fmt.Fprintf(&buf, "\nrequire %s %s\n", d.Module, d.Version)
	}
	return buf.String()
}

// buildError translates raw "go build" stderr into a LoadError carrying an
// analyzer.Span when the first diagnostic line can be located.
func buildError(stderr string) error {
	if m := compileErrorPattern.FindStringSubmatch(stderr); m != nil {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		return photonerr.Newf(photonerr.LoadError, "compile failed: %s", m[3]).
			WithDetail(analyzer.Span{Line: line, Column: col})
	}
	return photonerr.Newf(photonerr.LoadError, "compile failed: %s", stderr)
}
