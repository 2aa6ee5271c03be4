package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.StoragePath)
	require.Equal(t, "sessions.json", filepath.Base(cfg.StoragePath))
	require.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	require.Empty(t, cfg.Language)
	require.Empty(t, cfg.AudioDevice)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[storage]
path = "/tmp/voicefit-test/sessions.json"

[gemini]
model = "gemini-2.5-pro"
language = "en"

[audio]
device = "USB Mic"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/voicefit-test/sessions.json", cfg.StoragePath)
	require.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	require.Equal(t, "en", cfg.Language)
	require.Equal(t, "USB Mic", cfg.AudioDevice)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("VOICEFIT_STORAGE_PATH", "/tmp/env/sessions.json")
	t.Setenv("VOICEFIT_GEMINI_MODEL", "gemini-env")
	t.Setenv("VOICEFIT_GEMINI_LANGUAGE", "de")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/env/sessions.json", cfg.StoragePath)
	require.Equal(t, "gemini-env", cfg.GeminiModel)
	require.Equal(t, "de", cfg.Language)
}

func TestLoadStandardLocation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "voicefit"), 0o755))
	content := "[gemini]\nmodel = \"from-xdg\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "voicefit", "config.toml"), []byte(content), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "from-xdg", cfg.GeminiModel)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "x.json"), expandHome("~/x.json"))
	require.Equal(t, "/abs/x.json", expandHome("/abs/x.json"))
}
