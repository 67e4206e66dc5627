package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresToken(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadDefaultsWithEnvToken(t *testing.T) {
	t.Setenv("HOST_TOKEN", "secret")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8123/api/websocket", cfg.Host.URL)
	require.Equal(t, ":8090", cfg.Listen)
	require.Equal(t, "secret", cfg.Host.Token)
	require.Equal(t, 800*time.Millisecond, cfg.Debounce.Text)
	require.False(t, cfg.Tablet)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("HOST_TOKEN", "secret")
	t.Setenv("PANEL_LISTEN", ":9999")
	t.Setenv("PANEL_TABLET_MODE", "true")

	path := filepath.Join(t.TempDir(), "panel.yaml")
	data := []byte(`
host:
  url: ws://ha.local:8123/api/websocket
listen: ":8091"
debounce:
  text: 1s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ws://ha.local:8123/api/websocket", cfg.Host.URL)
	require.Equal(t, ":9999", cfg.Listen, "env overrides the file")
	require.Equal(t, time.Second, cfg.Debounce.Text)
	require.True(t, cfg.Tablet)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("HOST_TOKEN", "secret")

	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debounce:\n  text: soon\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid duration")
}

func TestLoadPartialDebounceKeepsOtherDefaults(t *testing.T) {
	t.Setenv("HOST_TOKEN", "secret")

	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debounce:\n  select: 50ms\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, cfg.Debounce.Select)
	require.Equal(t, 800*time.Millisecond, cfg.Debounce.Text)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOST_TOKEN", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, ":8090", cfg.Listen)
}
