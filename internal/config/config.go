package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string `yaml:"port"`
		TokenSecret string `yaml:"tokenSecret"`
		TokenTTL    string `yaml:"tokenTTL"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Client struct {
		StorePath string `yaml:"storePath"`
		RemoteURL string `yaml:"remoteUrl"`
		Google    struct {
			ClientID     string `yaml:"clientId"`
			ClientSecret string `yaml:"clientSecret"`
			RedirectURL  string `yaml:"redirectUrl"`
		} `yaml:"google"`
		DriveBackup bool `yaml:"driveBackup"`
		Sync        struct {
			Debounce        string `yaml:"debounce"`
			MinPushInterval string `yaml:"minPushInterval"`
			AutoWindow      string `yaml:"autoWindow"`
			AutoLimit       int    `yaml:"autoLimit"`
			ManualWindow    string `yaml:"manualWindow"`
			ManualLimit     int    `yaml:"manualLimit"`
			MaxAttempts     int    `yaml:"maxAttempts"`
			RetryBase       string `yaml:"retryBase"`
		} `yaml:"sync"`
	} `yaml:"client"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
