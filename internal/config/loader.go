package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr             string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir        string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ExecutableFolder string   `json:"executable_folder" yaml:"executable_folder" toml:"executable_folder"`
	DataDir          string   `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	CatalogPath      string   `json:"catalog_path" yaml:"catalog_path" toml:"catalog_path"`
	ServerHost       string   `json:"server_host" yaml:"server_host" toml:"server_host"`
	DefaultPort      int      `json:"default_port" yaml:"default_port" toml:"default_port"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	ThemeColor       string   `json:"theme_color" yaml:"theme_color" toml:"theme_color"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields with their defaults. The base
// directory mirrors the desktop app layout under ~/.llamadesk.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.ModelsDir == "" {
		c.ModelsDir = "~/.llamadesk/models"
	}
	if c.ExecutableFolder == "" {
		c.ExecutableFolder = "~/.llamadesk/llama.cpp"
	}
	if c.DataDir == "" {
		c.DataDir = "~/.llamadesk"
	}
	if c.ServerHost == "" {
		c.ServerHost = "127.0.0.1"
	}
	if c.DefaultPort == 0 {
		c.DefaultPort = 8080
	}
	if c.ThemeColor == "" {
		c.ThemeColor = "dark-gray"
	}
}
