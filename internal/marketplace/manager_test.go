package marketplace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/photonerr"
)

type fakeSourceStore struct {
	sources []Source
	saved   [][]Source
}

func (f *fakeSourceStore) Sources(ctx context.Context) ([]Source, error) {
	out := make([]Source, len(f.sources))
	copy(out, f.sources)
	return out, nil
}

func (f *fakeSourceStore) SaveSources(ctx context.Context, sources []Source) error {
	f.sources = sources
	f.saved = append(f.saved, sources)
	return nil
}

type fakeInstallStore struct {
	installs []InstallRecord
}

func (f *fakeInstallStore) Installs(ctx context.Context) ([]InstallRecord, error) {
	return f.installs, nil
}

func (f *fakeInstallStore) SaveInstall(ctx context.Context, rec InstallRecord) error {
	for i, existing := range f.installs {
		if existing.PhotonName == rec.PhotonName {
			f.installs[i] = rec
			return nil
		}
	}
	f.installs = append(f.installs, rec)
	return nil
}

type fakeFetcher struct {
	manifests map[string][]ManifestEntry
	sources   map[string][]byte
	err       error
}

func (f *fakeFetcher) FetchManifest(ctx context.Context, origin string) ([]ManifestEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.manifests[origin], nil
}

func (f *fakeFetcher) FetchSource(ctx context.Context, origin, sourcePath string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sources[origin+"/"+sourcePath], nil
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestManager_ResolveSingleCandidate(t *testing.T) {
	sourceStore := &fakeSourceStore{sources: []Source{
		{Name: "official", Origin: "https://example.com/official", Enabled: true, LastFetchedAt: time.Now()},
	}}
	fetcher := &fakeFetcher{manifests: map[string][]ManifestEntry{
		"https://example.com/official": {{Name: "weather", Version: "1.2.0", SourcePath: "weather.go"}},
	}}
	m := NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)

	res, err := m.Resolve(context.Background(), "weather")
	require.NoError(t, err)
	assert.True(t, res.Unambiguous())
	assert.Equal(t, "official", res.Candidate.Source.Name)
}

func TestManager_ResolveConflictRecommendsHighestSemver(t *testing.T) {
	sourceStore := &fakeSourceStore{sources: []Source{
		{Name: "official", Origin: "o1", Enabled: true, LastFetchedAt: time.Now()},
		{Name: "community", Origin: "o2", Enabled: true, LastFetchedAt: time.Now()},
	}}
	fetcher := &fakeFetcher{manifests: map[string][]ManifestEntry{
		"o1": {{Name: "weather", Version: "1.2.0"}},
		"o2": {{Name: "weather", Version: "2.0.0"}},
	}}
	m := NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)

	res, err := m.Resolve(context.Background(), "weather")
	require.NoError(t, err)
	assert.False(t, res.Unambiguous())
	require.NotNil(t, res.Recommended)
	assert.Equal(t, "community", res.Recommended.Source.Name)
	assert.Len(t, res.Conflicts, 2)
}

func TestManager_ResolveForcedSource(t *testing.T) {
	sourceStore := &fakeSourceStore{sources: []Source{
		{Name: "official", Origin: "o1", Enabled: true, LastFetchedAt: time.Now()},
		{Name: "community", Origin: "o2", Enabled: true, LastFetchedAt: time.Now()},
	}}
	fetcher := &fakeFetcher{manifests: map[string][]ManifestEntry{
		"o1": {{Name: "weather", Version: "1.2.0"}},
		"o2": {{Name: "weather", Version: "2.0.0"}},
	}}
	m := NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)

	res, err := m.Resolve(context.Background(), "community:weather")
	require.NoError(t, err)
	assert.True(t, res.Unambiguous())
	assert.Equal(t, "2.0.0", res.Candidate.Entry.Version)

	_, err = m.Resolve(context.Background(), "official:missing-photon")
	require.Error(t, err)
	assert.Equal(t, photonerr.NotFound, photonerr.KindOf(err))
}

func TestManager_ResolveNotFound(t *testing.T) {
	sourceStore := &fakeSourceStore{sources: []Source{
		{Name: "official", Origin: "o1", Enabled: true, LastFetchedAt: time.Now()},
	}}
	fetcher := &fakeFetcher{manifests: map[string][]ManifestEntry{}}
	m := NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)

	_, err := m.Resolve(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Equal(t, photonerr.NotFound, photonerr.KindOf(err))
}

func TestManager_RefreshesStaleManifestOnResolve(t *testing.T) {
	sourceStore := &fakeSourceStore{sources: []Source{
		{Name: "official", Origin: "o1", Enabled: true}, // zero LastFetchedAt: always stale
	}}
	fetcher := &fakeFetcher{manifests: map[string][]ManifestEntry{
		"o1": {{Name: "weather", Version: "1.0.0"}},
	}}
	m := NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)

	_, err := m.Resolve(context.Background(), "weather")
	require.NoError(t, err)
	require.Len(t, sourceStore.saved, 1)
	assert.False(t, sourceStore.saved[0][0].LastFetchedAt.IsZero())
}

func TestManager_InstallVerifiesContentHash(t *testing.T) {
	body := []byte("package photon\n")
	sourceStore := &fakeSourceStore{sources: []Source{{Name: "official", Origin: "o1", Enabled: true, LastFetchedAt: time.Now()}}}
	installs := &fakeInstallStore{}
	fetcher := &fakeFetcher{
		manifests: map[string][]ManifestEntry{"o1": {{Name: "weather", Version: "1.0.0", SourcePath: "weather.go", ContentHash: hashOf(body)}}},
		sources:   map[string][]byte{"o1/weather.go": body},
	}
	m := NewManager(sourceStore, installs, fetcher, nil)

	res, err := m.Resolve(context.Background(), "weather")
	require.NoError(t, err)

	got, err := m.Install(context.Background(), res.Candidate)
	require.NoError(t, err)
	assert.Equal(t, body, got)
	require.Len(t, installs.installs, 1)
	assert.Equal(t, "weather", installs.installs[0].PhotonName)
	assert.Equal(t, "official", installs.installs[0].SourceMarketplace)
}

func TestManager_InstallRejectsHashMismatch(t *testing.T) {
	body := []byte("package photon\n")
	sourceStore := &fakeSourceStore{sources: []Source{{Name: "official", Origin: "o1", Enabled: true, LastFetchedAt: time.Now()}}}
	fetcher := &fakeFetcher{
		manifests: map[string][]ManifestEntry{"o1": {{Name: "weather", Version: "1.0.0", SourcePath: "weather.go", ContentHash: "deadbeef"}}},
		sources:   map[string][]byte{"o1/weather.go": body},
	}
	m := NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)

	res, err := m.Resolve(context.Background(), "weather")
	require.NoError(t, err)

	_, err = m.Install(context.Background(), res.Candidate)
	require.Error(t, err)
	assert.Equal(t, photonerr.IntegrityError, photonerr.KindOf(err))
}
