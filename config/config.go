// Package config resolves runtime settings from an optional TOML file
// and VOICEFIT_-prefixed environment variables. The Gemini credential is
// deliberately not part of this: it is read from GEMINI_API_KEY at call
// time and never persisted.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = "voicefit"

	keyStoragePath = "storage.path"
	keyGeminiModel = "gemini.model"
	keyLanguage    = "gemini.language"
	keyAudioDevice = "audio.device"

	defaultModel = "gemini-2.5-flash"
)

type Config struct {
	// StoragePath is where the session snapshot file lives.
	StoragePath string
	// GeminiModel names the extraction model.
	GeminiModel string
	// Language hints the spoken language to the extractor; empty means
	// auto-detect.
	Language string
	// AudioDevice is the preferred capture device name; empty means the
	// system default.
	AudioDevice string
}

// Load reads configuration. explicitFile, when non-empty, names a config
// file that must exist; otherwise the standard location is tried and its
// absence is fine.
func Load(explicitFile string) (*Config, error) {
	v := viper.New()

	dataDir, err := defaultDataDir()
	if err != nil {
		return nil, err
	}
	v.SetDefault(keyStoragePath, filepath.Join(dataDir, "sessions.json"))
	v.SetDefault(keyGeminiModel, defaultModel)
	v.SetDefault(keyLanguage, "")
	v.SetDefault(keyAudioDevice, "")

	v.SetEnvPrefix("VOICEFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		for _, dir := range configSearchDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		StoragePath: expandHome(v.GetString(keyStoragePath)),
		GeminiModel: v.GetString(keyGeminiModel),
		Language:    v.GetString(keyLanguage),
		AudioDevice: v.GetString(keyAudioDevice),
	}
	if cfg.StoragePath == "" {
		return nil, errors.New("storage path is empty")
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = defaultModel
	}
	return cfg, nil
}

func configSearchDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, configDir))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", configDir))
	}
	return dirs
}

// defaultDataDir is where the session file goes when storage.path is not
// configured.
func defaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", configDir), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, configDir), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, configDir), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", configDir), nil
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
		}
	}
	return p
}
