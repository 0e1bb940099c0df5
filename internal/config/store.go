// Package config implements the Configuration Store: three flat,
// human-readable YAML documents on disk (marketplace sources, install
// registry, per-photon configuration), each written atomically via
// temp-file-plus-rename and read tolerantly (a missing file is empty
// defaults, not an error).
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/photon-run/photon/internal/marketplace"
	"github.com/photon-run/photon/internal/photonerr"
)

// Store persists the three configuration documents under one directory.
// It implements marketplace.SourceStore and marketplace.InstallStore
// directly so the Marketplace Manager can be constructed with a Store
// without an adapter.
type Store struct {
	dir string
	mu  sync.Mutex
}

const (
	sourcesFile = "sources.yaml"
	installFile = "installs.yaml"
	configFile  = "config.yaml"
)

// New opens (creating if necessary) a configuration store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, photonerr.Wrap(photonerr.Internal, err, "create config dir")
	}
	return &Store{dir: dir}, nil
}

type sourcesDocument struct {
	Sources []marketplace.Source `yaml:"sources"`
}

// Sources implements marketplace.SourceStore.
func (s *Store) Sources(ctx context.Context) ([]marketplace.Source, error) {
	var doc sourcesDocument
	if err := s.read(sourcesFile, &doc); err != nil {
		return nil, err
	}
	return doc.Sources, nil
}

// SaveSources implements marketplace.SourceStore.
func (s *Store) SaveSources(ctx context.Context, sources []marketplace.Source) error {
	return s.write(sourcesFile, sourcesDocument{Sources: sources})
}

type installsDocument struct {
	Installs []marketplace.InstallRecord `yaml:"installs"`
}

// Installs implements marketplace.InstallStore.
func (s *Store) Installs(ctx context.Context) ([]marketplace.InstallRecord, error) {
	var doc installsDocument
	if err := s.read(installFile, &doc); err != nil {
		return nil, err
	}
	return doc.Installs, nil
}

// SaveInstall implements marketplace.InstallStore: it upserts rec by
// photon name, overwriting any existing record per the data model
// invariant that a photon is installed from at most one source at a time.
func (s *Store) SaveInstall(ctx context.Context, rec marketplace.InstallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc installsDocument
	if err := s.read(installFile, &doc); err != nil {
		return err
	}
	replaced := false
	for i, existing := range doc.Installs {
		if existing.PhotonName == rec.PhotonName {
			doc.Installs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Installs = append(doc.Installs, rec)
	}
	return s.write(installFile, doc)
}

// configDocument holds per-photon saved configuration records keyed by
// photon name, each a flat paramName->value map. Unknown keys round-trip
// unchanged so a config written by a newer version of the runtime is never
// silently dropped by an older one.
type configDocument struct {
	Photons map[string]map[string]any `yaml:"photons"`
}

// PhotonConfig returns the saved configuration record for a photon, or an
// empty map if none has been saved yet.
func (s *Store) PhotonConfig(ctx context.Context, photonName string) (map[string]any, error) {
	var doc configDocument
	if err := s.read(configFile, &doc); err != nil {
		return nil, err
	}
	if doc.Photons == nil {
		return map[string]any{}, nil
	}
	if rec, ok := doc.Photons[photonName]; ok {
		return rec, nil
	}
	return map[string]any{}, nil
}

// SavePhotonConfig persists the configuration record for one photon,
// leaving every other photon's record untouched.
func (s *Store) SavePhotonConfig(ctx context.Context, photonName string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc configDocument
	if err := s.read(configFile, &doc); err != nil {
		return err
	}
	if doc.Photons == nil {
		doc.Photons = map[string]map[string]any{}
	}
	doc.Photons[photonName] = record
	return s.write(configFile, doc)
}

// read loads name into out, leaving out at its zero value (tolerant empty
// defaults) when the file does not exist yet.
func (s *Store) read(name string, out any) error {
	path := filepath.Join(s.dir, name)
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return photonerr.Wrapf(photonerr.Internal, err, "read %s", name)
	}
	if err := yaml.Unmarshal(body, out); err != nil {
		return photonerr.Wrapf(photonerr.Internal, err, "parse %s", name)
	}
	return nil
}

// write serializes v and installs it at name via temp-file-plus-rename, so
// a crash mid-write never leaves a half-written or truncated document.
func (s *Store) write(name string, v any) error {
	body, err := yaml.Marshal(v)
	if err != nil {
		return photonerr.Wrapf(photonerr.Internal, err, "marshal %s", name)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + fmt.Sprintf(".%d.tmp", os.Getpid())
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return photonerr.Wrapf(photonerr.Internal, err, "write temp %s", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return photonerr.Wrapf(photonerr.Internal, err, "install %s", name)
	}
	return nil
}
