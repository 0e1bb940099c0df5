package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/photonerr"
)

func TestEnvVarName(t *testing.T) {
	assert.Equal(t, "WEATHER_API_KEY", EnvVarName("weather", "apiKey"))
	assert.Equal(t, "WEATHER_UNITS", EnvVarName("weather", "units"))
}

func TestStore_BackfillUsesEnvWhenNothingSaved(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	t.Setenv("WEATHER_API_KEY", "from-env")
	schema := []catalog.ConfigParam{{Name: "apiKey", Type: "string", Required: true}}

	record, err := s.Backfill("weather", schema, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", record["apiKey"])
}

func TestStore_BackfillFallsBackToSavedThenDefault(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	schema := []catalog.ConfigParam{
		{Name: "apiKey", Type: "string", Required: true},
		{Name: "units", Type: "string", Required: true, Default: "metric"},
	}
	record, err := s.Backfill("weather", schema, map[string]any{"apiKey": "from-saved"})
	require.NoError(t, err)
	assert.Equal(t, "from-saved", record["apiKey"])
	assert.Equal(t, "metric", record["units"])
}

func TestStore_BackfillReturnsNotConfiguredWithMissingList(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	schema := []catalog.ConfigParam{{Name: "apiKey", Type: "string", Required: true}}
	_, err = s.Backfill("weather", schema, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, photonerr.NotConfigured, photonerr.KindOf(err))
}

func TestStore_BackfillCoercesNumberAndBoolean(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	t.Setenv("WEATHER_TIMEOUT", "30")
	t.Setenv("WEATHER_VERBOSE", "true")
	schema := []catalog.ConfigParam{
		{Name: "timeout", Type: "number", Required: true},
		{Name: "verbose", Type: "boolean", Required: true},
	}
	record, err := s.Backfill("weather", schema, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 30.0, record["timeout"])
	assert.Equal(t, true, record["verbose"])
}
