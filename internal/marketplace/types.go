// Package marketplace implements the Marketplace Manager: an ordered list
// of photon sources, each offering a manifest of installable photons, with
// bare-name resolution, conflict detection, content-hash verified fetches,
// and install-record bookkeeping.
package marketplace

import "time"

// Source is one entry in the ordered source list. Earlier entries are
// scanned first but do not shadow later ones: resolution collects matches
// across every enabled source before deciding. Struct tags give the
// configuration store a stable, human-readable on-disk shape.
type Source struct {
	Name          string          `yaml:"name"`
	Origin        string          `yaml:"origin"`
	Enabled       bool            `yaml:"enabled"`
	Manifest      []ManifestEntry `yaml:"manifest,omitempty"`
	LastFetchedAt time.Time       `yaml:"fetchedAt,omitempty"`
}

// ManifestEntry describes one installable photon offered by a source.
type ManifestEntry struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description,omitempty"`
	SourcePath  string   `yaml:"sourcePath"`
	ContentHash string   `yaml:"contentHash"`
	Assets      []string `yaml:"assets,omitempty"`
	Author      string   `yaml:"author,omitempty"`
	License     string   `yaml:"license,omitempty"`
}

// InstallRecord is the persisted record of one installed photon. A photon
// is installed from at most one source at a time; reinstalling overwrites
// the record for that photon name.
type InstallRecord struct {
	PhotonName        string    `yaml:"photonName"`
	SourceMarketplace string    `yaml:"sourceMarketplace"`
	InstalledVersion  string    `yaml:"installedVersion"`
	InstalledAt       time.Time `yaml:"installedAt"`
	ContentHash       string    `yaml:"contentHash"`
}

// Candidate pairs a manifest entry with the source that offers it, used to
// report a resolution conflict across sources.
type Candidate struct {
	Source Source
	Entry  ManifestEntry
}
