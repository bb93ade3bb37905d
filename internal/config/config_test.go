package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "firestore", cfg.RemoteBackend)
	require.Equal(t, 48.8566, cfg.DefaultLatitude)
	require.Equal(t, 2.3522, cfg.DefaultLongitude)
	require.Equal(t, 5, cfg.DefaultZoom)
	require.Equal(t, 15, cfg.FixZoom)
	require.Equal(t, 900_000, cfg.MaxSinglePhotoBytes)
	require.Equal(t, 3_000_000, cfg.MaxTotalPhotoBytes)
	require.Equal(t, "inline", cfg.PhotoStorage)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REMOTE_BACKEND", "mongo")
	t.Setenv("DEFAULT_LATITUDE", "45.764")
	t.Setenv("DEFAULT_ZOOM", "8")
	t.Setenv("MAX_SINGLE_PHOTO_BYTES", "500000")

	cfg := Load()
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "mongo", cfg.RemoteBackend)
	require.Equal(t, 45.764, cfg.DefaultLatitude)
	require.Equal(t, 8, cfg.DefaultZoom)
	require.Equal(t, 500_000, cfg.MaxSinglePhotoBytes)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("DEFAULT_ZOOM", "not-a-number")
	t.Setenv("DEFAULT_LATITUDE", "also-not")

	cfg := Load()
	require.Equal(t, 5, cfg.DefaultZoom)
	require.Equal(t, 48.8566, cfg.DefaultLatitude)
}
