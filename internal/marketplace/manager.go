package marketplace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/photon-run/photon/internal/photonerr"
	"github.com/photon-run/photon/internal/telemetry"
)

// SourceStore persists the ordered source list, owned by the configuration
// store. The Manager never writes sources directly; it calls SaveSources
// after mutating its in-memory copy so every change is durable.
type SourceStore interface {
	Sources(ctx context.Context) ([]Source, error)
	SaveSources(ctx context.Context, sources []Source) error
}

// InstallStore persists install records, one per installed photon name.
type InstallStore interface {
	Installs(ctx context.Context) ([]InstallRecord, error)
	SaveInstall(ctx context.Context, rec InstallRecord) error
}

// Manager resolves bare photon names against an ordered list of sources,
// refreshes their manifests on a TTL, and records installs.
type Manager struct {
	sources SourceStore
	installs InstallStore
	fetcher Fetcher
	log     telemetry.Logger

	// TTL is how long a fetched manifest remains fresh before Resolve
	// triggers an on-demand refresh.
	TTL time.Duration

	mu sync.Mutex
}

// NewManager constructs a Manager. TTL defaults to one hour.
func NewManager(sources SourceStore, installs InstallStore, fetcher Fetcher, log telemetry.Logger) *Manager {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &Manager{sources: sources, installs: installs, fetcher: fetcher, log: log, TTL: time.Hour}
}

// Resolution is the outcome of resolving a bare name: either a single
// unambiguous candidate, or a conflict set with a recommended candidate.
type Resolution struct {
	Candidate   Candidate
	Conflicts   []Candidate
	Recommended *Candidate
}

// Unambiguous reports whether resolution produced exactly one candidate.
func (r Resolution) Unambiguous() bool { return len(r.Conflicts) == 0 }

// Resolve finds every enabled source offering name, refreshing any source
// whose manifest has gone stale. A single match installs directly; more
// than one is a conflict, resolved by highest semver version as a
// recommendation the caller may accept or present to the user.
func (m *Manager) Resolve(ctx context.Context, name string) (Resolution, error) {
	if source, bare, ok := strings.Cut(name, ":"); ok {
		return m.resolveFromSource(ctx, source, bare)
	}

	sources, err := m.refreshedSources(ctx)
	if err != nil {
		return Resolution{}, err
	}

	var candidates []Candidate
	for _, s := range sources {
		if !s.Enabled {
			continue
		}
		for _, e := range s.Manifest {
			if e.Name == name {
				candidates = append(candidates, Candidate{Source: s, Entry: e})
			}
		}
	}

	if len(candidates) == 0 {
		return Resolution{}, photonerr.Newf(photonerr.NotFound, "no source offers photon %q", name)
	}
	if len(candidates) == 1 {
		return Resolution{Candidate: candidates[0]}, nil
	}

	recommended := recommend(candidates)
	sortCandidates(candidates)
	return Resolution{Candidate: recommended, Conflicts: candidates, Recommended: &recommended}, nil
}

func (m *Manager) resolveFromSource(ctx context.Context, sourceName, name string) (Resolution, error) {
	sources, err := m.refreshedSources(ctx)
	if err != nil {
		return Resolution{}, err
	}
	for _, s := range sources {
		if s.Name != sourceName {
			continue
		}
		for _, e := range s.Manifest {
			if e.Name == name {
				return Resolution{Candidate: Candidate{Source: s, Entry: e}}, nil
			}
		}
		return Resolution{}, photonerr.Newf(photonerr.NotFound, "source %q does not offer photon %q", sourceName, name)
	}
	return Resolution{}, photonerr.Newf(photonerr.NotFound, "no such source %q", sourceName)
}

// recommend picks the candidate with the highest semver version. A
// candidate whose version does not parse as semver sorts last rather than
// failing the whole resolution.
func recommend(candidates []Candidate) Candidate {
	best := candidates[0]
	bestVer, bestOK := parseVersion(best.Entry.Version)
	for _, c := range candidates[1:] {
		ver, ok := parseVersion(c.Entry.Version)
		switch {
		case ok && bestOK && ver.GreaterThan(bestVer):
			best, bestVer = c, ver
		case ok && !bestOK:
			best, bestVer, bestOK = c, ver, true
		}
	}
	return best
}

func parseVersion(v string) (*semver.Version, bool) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, false
	}
	return parsed, true
}

// refreshedSources returns the current source list, refreshing any enabled
// source whose manifest is older than TTL or has never been fetched.
func (m *Manager) refreshedSources(ctx context.Context) ([]Source, error) {
	sources, err := m.sources.Sources(ctx)
	if err != nil {
		return nil, photonerr.Wrap(photonerr.Internal, err, "load sources")
	}

	var fetchErrors []string
	changed := false
	for i, s := range sources {
		if !s.Enabled {
			continue
		}
		if !s.LastFetchedAt.IsZero() && time.Since(s.LastFetchedAt) < m.TTL {
			continue
		}
		refreshed, err := m.fetchManifest(ctx, s)
		if err != nil {
			fetchErrors = append(fetchErrors, fmt.Sprintf("%s: %v", s.Name, err))
			m.log.Warn(ctx, "marketplace source unreachable, using cached manifest", "source", s.Name, "error", err.Error())
			continue
		}
		sources[i] = refreshed
		changed = true
	}

	if changed {
		if err := m.sources.SaveSources(ctx, sources); err != nil {
			return nil, photonerr.Wrap(photonerr.Internal, err, "save refreshed sources")
		}
	}

	// A source being unreachable never fails resolution outright: a
	// partial list with some sources stale still permits resolving from
	// the healthy ones, per the refresh policy.
	_ = fetchErrors
	return sources, nil
}

// Refresh force-refreshes every enabled source regardless of TTL.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, err := m.sources.Sources(ctx)
	if err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "load sources")
	}
	var failures []string
	for i, s := range sources {
		if !s.Enabled {
			continue
		}
		refreshed, err := m.fetchManifest(ctx, s)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}
		sources[i] = refreshed
	}
	if err := m.sources.SaveSources(ctx, sources); err != nil {
		return photonerr.Wrap(photonerr.Internal, err, "save refreshed sources")
	}
	if len(failures) == len(enabledCount(sources)) && len(failures) > 0 {
		return photonerr.Newf(photonerr.UpstreamUnavailable, "all sources unreachable: %s", strings.Join(failures, "; "))
	}
	return nil
}

func enabledCount(sources []Source) []Source {
	var out []Source
	for _, s := range sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) fetchManifest(ctx context.Context, s Source) (Source, error) {
	entries, err := m.fetcher.FetchManifest(ctx, s.Origin)
	if err != nil {
		return s, err
	}
	s.Manifest = entries
	s.LastFetchedAt = time.Now()
	return s, nil
}

// Install fetches the source file named by candidate, verifies its content
// hash, and records an install entry, overwriting any existing record for
// the same photon name.
func (m *Manager) Install(ctx context.Context, candidate Candidate) ([]byte, error) {
	body, err := m.fetcher.FetchSource(ctx, candidate.Source.Origin, candidate.Entry.SourcePath)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(body)
	computed := hex.EncodeToString(sum[:])
	if candidate.Entry.ContentHash != "" && computed != candidate.Entry.ContentHash {
		return nil, photonerr.Newf(photonerr.IntegrityError, "content hash mismatch for %s: manifest declared %s, fetched %s",
			candidate.Entry.Name, candidate.Entry.ContentHash, computed).
			WithDetail(map[string]string{"photon": candidate.Entry.Name, "source": candidate.Source.Name})
	}

	rec := InstallRecord{
		PhotonName:        candidate.Entry.Name,
		SourceMarketplace: candidate.Source.Name,
		InstalledVersion:  candidate.Entry.Version,
		InstalledAt:       time.Now(),
		ContentHash:       computed,
	}
	if err := m.installs.SaveInstall(ctx, rec); err != nil {
		return nil, photonerr.Wrap(photonerr.Internal, err, "save install record")
	}
	return body, nil
}

// sortCandidates orders candidates by descending version for presentation,
// falling back to source name for candidates with unparseable versions.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		vi, oki := parseVersion(candidates[i].Entry.Version)
		vj, okj := parseVersion(candidates[j].Entry.Version)
		switch {
		case oki && okj:
			return vi.GreaterThan(vj)
		case oki != okj:
			return oki
		default:
			return candidates[i].Source.Name < candidates[j].Source.Name
		}
	})
}
