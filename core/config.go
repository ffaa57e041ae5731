package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const ConfigFile = "teamsite.config.yml"

type Config struct {
	OutputDir    string `yaml:"outputDir" envconfig:"TEAMSITE_OUTPUT_DIR"`
	TemplateDir  string `yaml:"templateDir" envconfig:"TEAMSITE_TEMPLATE_DIR"`
	PublicDir    string `yaml:"publicDir" envconfig:"TEAMSITE_PUBLIC_DIR"`
	CacheEnabled bool   `yaml:"cache" envconfig:"TEAMSITE_CACHE"`
	MinifyHTML   bool   `yaml:"minifyHTML" envconfig:"TEAMSITE_MINIFY_HTML"`
	DebugHeaders bool   `yaml:"debugHeaders" envconfig:"TEAMSITE_DEBUG_HEADERS"`
	DebugLogs    bool   `yaml:"debugLogs" envconfig:"TEAMSITE_DEBUG_LOGS"`
}

// ListenConfig is read from the environment only, so container platforms
// can move the bind address without touching the config file.
type ListenConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8080"`
}

func defaultConfig() Config {
	return Config{
		OutputDir:    "./cache",
		TemplateDir:  "templates",
		PublicDir:    "public",
		CacheEnabled: true,
	}
}

// LoadConfig reads the YAML file at path, falls back to defaults when it is
// missing, and applies TEAMSITE_* environment overrides on top.
var LoadConfig = func(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	fallback := defaultConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = fallback.OutputDir
	}
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = fallback.TemplateDir
	}
	if cfg.PublicDir == "" {
		cfg.PublicDir = fallback.PublicDir
	}

	return &cfg, nil
}

func LoadListenConfig() (ListenConfig, error) {
	var lc ListenConfig
	if err := envconfig.Process("", &lc); err != nil {
		return ListenConfig{}, fmt.Errorf("load listen config: %w", err)
	}
	return lc, nil
}
