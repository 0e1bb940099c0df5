package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/marketplace"
)

func TestStore_SourcesRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	sources := []marketplace.Source{
		{Name: "official", Origin: "https://example.com/official", Enabled: true, LastFetchedAt: time.Now().Round(time.Second)},
	}
	require.NoError(t, s.SaveSources(context.Background(), sources))

	got, err := s.Sources(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "official", got[0].Name)
	assert.True(t, got[0].LastFetchedAt.Equal(sources[0].LastFetchedAt))
}

func TestStore_SourcesEmptyWhenFileMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	got, err := s.Sources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveInstallUpsertsByPhotonName(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	rec1 := marketplace.InstallRecord{PhotonName: "weather", InstalledVersion: "1.0.0"}
	rec2 := marketplace.InstallRecord{PhotonName: "weather", InstalledVersion: "2.0.0"}
	require.NoError(t, s.SaveInstall(context.Background(), rec1))
	require.NoError(t, s.SaveInstall(context.Background(), rec2))

	installs, err := s.Installs(context.Background())
	require.NoError(t, err)
	require.Len(t, installs, 1)
	assert.Equal(t, "2.0.0", installs[0].InstalledVersion)
}

func TestStore_PhotonConfigRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SavePhotonConfig(context.Background(), "weather", map[string]any{"apiKey": "secret"}))
	require.NoError(t, s.SavePhotonConfig(context.Background(), "other", map[string]any{"flag": true}))

	got, err := s.PhotonConfig(context.Background(), "weather")
	require.NoError(t, err)
	assert.Equal(t, "secret", got["apiKey"])

	other, err := s.PhotonConfig(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, true, other["flag"])

	missing, err := s.PhotonConfig(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStore_WriteIsAtomicViaTempRename(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveSources(context.Background(), []marketplace.Source{{Name: "a", Enabled: true}}))

	entries, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no leftover temp files after a successful write")
}
