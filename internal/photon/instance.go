// Package photon implements the Photon Instance: an immutable, in-memory
// wrapper around one successfully loaded source file. A reload produces a
// brand new Instance and swaps it in atomically; nothing about an existing
// Instance ever mutates after construction.
package photon

import (
	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photonerr"
)

// Instance is a loaded, runnable photon: its catalog plus the object the
// loader instantiated. Invocation dispatch happens through Loaded, which
// exposes reflection-based method lookup.
type Instance struct {
	Loaded    *loader.LoadedPhoton
	spec      catalog.Spec
	configErr error
}

// New wraps a loader.Result as an Instance.
func New(result *loader.Result) *Instance {
	return NewWithConfigError(result, nil)
}

// NewWithConfigError wraps a loader.Result like New, additionally recording
// a NotConfigured error from the configuration backfill step. The photon
// still loads and appears in the catalog with whatever partial record the
// backfill produced; every tool call fails with configErr until the
// missing configuration is supplied and the photon reloads.
func NewWithConfigError(result *loader.Result, configErr error) *Instance {
	return &Instance{Loaded: result.Instance, spec: result.Spec, configErr: configErr}
}

// Name returns the photon's protocol-facing name.
func (i *Instance) Name() string { return i.spec.Name }

// ConfigError reports the outstanding configuration error recorded at load
// time, if any.
func (i *Instance) ConfigError() error { return i.configErr }

// Tool resolves a tool by name, including members flagged
// //photon:internal: per the catalog visibility rule, internal members
// compile and can be invoked by name, but never appear in tools/list.
func (i *Instance) Tool(name string) (catalog.Member, error) {
	m, ok := i.spec.Tool(name)
	if !ok {
		return catalog.Member{}, photonerr.Newf(photonerr.NotFound, "tool %q not found", name)
	}
	return m, nil
}

// Prompt resolves a prompt by name.
func (i *Instance) Prompt(name string) (catalog.Member, error) {
	m, ok := i.spec.Prompt(name)
	if !ok {
		return catalog.Member{}, photonerr.Newf(photonerr.NotFound, "prompt %q not found", name)
	}
	return m, nil
}

// Resource resolves the resource whose URI template matches uri.
func (i *Instance) Resource(uri string) (catalog.Member, map[string]string, error) {
	m, params, ok := i.spec.MatchResource(uri)
	if !ok {
		return catalog.Member{}, nil, photonerr.Newf(photonerr.NotFound, "no resource matches %q", uri)
	}
	return m, params, nil
}

// CatalogSnapshot returns the visible catalog for tools/list, prompts/list,
// and resources/list: every member except those flagged //photon:internal.
func (i *Instance) CatalogSnapshot() catalog.Spec {
	visible := catalog.Spec{
		Name:         i.spec.Name,
		DisplayName:  i.spec.DisplayName,
		Description:  i.spec.Description,
		Version:      i.spec.Version,
		Icon:         i.spec.Icon,
		ConfigSchema: i.spec.ConfigSchema,
		SourceHash:   i.spec.SourceHash,
		SourcePath:   i.spec.SourcePath,
	}
	for _, t := range i.spec.Tools {
		if !t.Flags.Internal {
			visible.Tools = append(visible.Tools, t)
		}
	}
	for _, p := range i.spec.Prompts {
		if !p.Flags.Internal {
			visible.Prompts = append(visible.Prompts, p)
		}
	}
	for _, r := range i.spec.Resources {
		if !r.Flags.Internal {
			visible.Resources = append(visible.Resources, r)
		}
	}
	return visible
}

// AutorunTools returns tools flagged //photon:autorun, invoked automatically
// once on successful load per the data model's autorun semantics.
func (i *Instance) AutorunTools() []catalog.Member {
	var out []catalog.Member
	for _, t := range i.spec.Tools {
		if t.Flags.Autorun {
			out = append(out, t)
		}
	}
	return out
}

// Close releases the underlying loaded plugin.
func (i *Instance) Close() error {
	if i.Loaded == nil {
		return nil
	}
	return i.Loaded.Close()
}
