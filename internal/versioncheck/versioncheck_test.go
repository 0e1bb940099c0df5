package versioncheck

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/marketplace"
	"github.com/photon-run/photon/internal/photonerr"
)

type fakeSourceStore struct{ sources []marketplace.Source }

func (f *fakeSourceStore) Sources(ctx context.Context) ([]marketplace.Source, error) {
	return f.sources, nil
}
func (f *fakeSourceStore) SaveSources(ctx context.Context, sources []marketplace.Source) error {
	f.sources = sources
	return nil
}

type fakeInstallStore struct{ installs []marketplace.InstallRecord }

func (f *fakeInstallStore) Installs(ctx context.Context) ([]marketplace.InstallRecord, error) {
	return f.installs, nil
}
func (f *fakeInstallStore) SaveInstall(ctx context.Context, rec marketplace.InstallRecord) error {
	f.installs = append(f.installs, rec)
	return nil
}

type fakeFetcher struct {
	manifest map[string][]marketplace.ManifestEntry
	body     []byte
}

func (f *fakeFetcher) FetchManifest(ctx context.Context, origin string) ([]marketplace.ManifestEntry, error) {
	return f.manifest[origin], nil
}
func (f *fakeFetcher) FetchSource(ctx context.Context, origin, sourcePath string) ([]byte, error) {
	return f.body, nil
}

func setup(t *testing.T, remoteVersion string, body []byte) (*Checker, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "weather.go")
	require.NoError(t, os.WriteFile(path, body, 0o644))

	sourceStore := &fakeSourceStore{sources: []marketplace.Source{
		{Name: "official", Origin: "o1", Enabled: true, LastFetchedAt: time.Now()},
	}}
	fetcher := &fakeFetcher{
		manifest: map[string][]marketplace.ManifestEntry{"o1": {{Name: "weather", Version: remoteVersion, SourcePath: "weather.go"}}},
		body:     body,
	}
	market := marketplace.NewManager(sourceStore, &fakeInstallStore{}, fetcher, nil)
	return New(market), path
}

func TestChecker_CheckDetectsUpdate(t *testing.T) {
	body := []byte("package photon\n")
	c, path := setup(t, "2.0.0", body)

	rec := marketplace.InstallRecord{PhotonName: "weather", SourceMarketplace: "official", InstalledVersion: "1.0.0", ContentHash: hashOf(body)}
	status, err := c.Check(context.Background(), rec, path)
	require.NoError(t, err)
	assert.True(t, status.HasUpdate)
	assert.False(t, status.IsLocallyModified)
}

func TestChecker_CheckDetectsLocalModification(t *testing.T) {
	body := []byte("package photon\n")
	c, path := setup(t, "1.0.0", body)

	rec := marketplace.InstallRecord{PhotonName: "weather", SourceMarketplace: "official", InstalledVersion: "1.0.0", ContentHash: "stale-hash"}
	status, err := c.Check(context.Background(), rec, path)
	require.NoError(t, err)
	assert.False(t, status.HasUpdate)
	assert.True(t, status.IsLocallyModified)
}

func TestChecker_UpgradeRefusesWhenLocallyModifiedWithoutForce(t *testing.T) {
	body := []byte("package photon\n")
	c, path := setup(t, "2.0.0", body)

	status := Status{Record: marketplace.InstallRecord{PhotonName: "weather", SourceMarketplace: "official"}, IsLocallyModified: true}
	_, err := c.Upgrade(context.Background(), status, path, false)
	require.Error(t, err)
	assert.Equal(t, photonerr.IntegrityError, photonerr.KindOf(err))
}

func TestChecker_UpgradeOverwritesAndRefreshesRecord(t *testing.T) {
	newBody := []byte("package photon\n// v2\n")
	c, path := setup(t, "2.0.0", newBody)

	status := Status{Record: marketplace.InstallRecord{PhotonName: "weather", SourceMarketplace: "official", InstalledVersion: "1.0.0"}}
	rec, err := c.Upgrade(context.Background(), status, path, false)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", rec.InstalledVersion)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, newBody, got)
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
