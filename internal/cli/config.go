// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Yangs-AI/younger-fetch/pkg/hfhub"
)

// Config is the resolved tool configuration, populated once at process start
// and passed down by reference. Sources in ascending priority: built-in
// defaults, config file, environment, CLI flags.
type Config struct {
	// ManifestDir is where model-ID manifests live (env HF_PATH).
	ManifestDir string `json:"manifest-dir" yaml:"manifest-dir"`

	// CacheDir is the snapshot cache directory (env HF_CACHE_PATH).
	CacheDir string `json:"cache-dir" yaml:"cache-dir"`

	// CacheFlagPath is the completion-flag file (env HF_CACHE_FLAG_PATH).
	CacheFlagPath string `json:"cache-flag" yaml:"cache-flag"`

	Token    string `json:"token" yaml:"token"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	Connections        int    `json:"connections" yaml:"connections"`
	MaxActive          int    `json:"max-active" yaml:"max-active"`
	MultipartThreshold string `json:"multipart-threshold" yaml:"multipart-threshold"`
	Verify             string `json:"verify" yaml:"verify"`
	Retries            int    `json:"retries" yaml:"retries"`
	BackoffInitial     string `json:"backoff-initial" yaml:"backoff-initial"`
	BackoffMax         string `json:"backoff-max" yaml:"backoff-max"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		CacheDir:           "Cache",
		Connections:        8,
		MaxActive:          3,
		MultipartThreshold: "32MiB",
		Verify:             "size",
		Retries:            4,
		BackoffInitial:     "400ms",
		BackoffMax:         "10s",
	}
}

// settings converts the config into download settings.
func (c Config) settings() hfhub.Settings {
	return hfhub.Settings{
		CacheDir:           c.CacheDir,
		Concurrency:        c.Connections,
		MaxActive:          c.MaxActive,
		MultipartThreshold: c.MultipartThreshold,
		Verify:             c.Verify,
		Retries:            c.Retries,
		BackoffInitial:     c.BackoffInitial,
		BackoffMax:         c.BackoffMax,
		Token:              c.Token,
		Endpoint:           c.Endpoint,
	}
}

// configFilePath returns the explicit path, or the first default location
// that exists, or "".
func configFilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"younger-fetch.json", "younger-fetch.yaml", "younger-fetch.yml"} {
		p := filepath.Join(home, ".config", name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadConfig resolves the configuration from defaults, an optional config
// file, and the environment. Missing values stay empty: the wrapper performs
// no path validation of its own.
func LoadConfig(explicitPath string) (Config, error) {
	cfg := DefaultConfig()

	if path := configFilePath(explicitPath); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("invalid YAML config %s: %w", path, err)
			}
		default:
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("invalid JSON config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays the shared environment variables onto the config. An
// empty-but-set path variable deliberately passes the empty string through.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("HF_PATH"); ok {
		cfg.ManifestDir = v
	}
	if v, ok := os.LookupEnv("HF_CACHE_PATH"); ok {
		cfg.CacheDir = v
	}
	if v, ok := os.LookupEnv("HF_CACHE_FLAG_PATH"); ok {
		cfg.CacheFlagPath = v
	}
	if v := strings.TrimSpace(os.Getenv("HF_TOKEN")); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("HF_ENDPOINT")); v != "" {
		cfg.Endpoint = v
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func defaultConfigPath(yamlExt bool) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find home directory: %w", err)
	}
	ext := ".json"
	if yamlExt {
		ext = ".yaml"
	}
	return filepath.Join(home, ".config", "younger-fetch"+ext), nil
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		useYAML bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Long: `Creates a default configuration file at ~/.config/younger-fetch.json (or .yaml)

The file sets defaults for all command flags; CLI flags and the HF_PATH,
HF_CACHE_PATH, HF_CACHE_FLAG_PATH and HF_TOKEN environment variables always
override it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := defaultConfigPath(useYAML)
			if err != nil {
				return err
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
			}

			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}

			cfg := DefaultConfig()
			var data []byte
			if useYAML {
				data, err = yaml.Marshal(cfg)
			} else {
				data, err = json.MarshalIndent(cfg, "", "  ")
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(configPath, data, 0o644); err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}

			fmt.Printf("Created config file: %s\n", configPath)
			fmt.Println()
			fmt.Println("Edit it to set your manifest directory, cache paths and token.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")
	cmd.Flags().BoolVar(&useYAML, "yaml", false, "Create YAML config instead of JSON")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig("")
			if err != nil {
				return err
			}
			if cfg.Token != "" {
				cfg.Token = "********"
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			if p := configFilePath(""); p != "" {
				fmt.Println(p)
				return
			}
			p, _ := defaultConfigPath(false)
			fmt.Println(p)
		},
	}
}
