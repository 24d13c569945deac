// Package settings persists the launcher configuration: global preferences
// plus per-model launch configs, stored together in one JSON file under the
// data directory.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"llamadeskd/internal/common/fsutil"
)

const settingsFile = "launcher_settings.json"

// GlobalConfig holds app-wide preferences.
type GlobalConfig struct {
	ModelsDirectory  string `json:"models_directory"`
	ExecutableFolder string `json:"executable_folder"`
	ThemeColor       string `json:"theme_color"`
}

// ModelConfig is the launch configuration of one model, keyed by model path.
type ModelConfig struct {
	CustomArgs string `json:"custom_args"`
	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`
	ModelPath  string `json:"model_path"`
}

// NewModelConfig returns the default config for a model path.
func NewModelConfig(modelPath, host string, port int) ModelConfig {
	return ModelConfig{
		CustomArgs: "",
		ServerHost: host,
		ServerPort: port,
		ModelPath:  modelPath,
	}
}

type settingsDoc struct {
	GlobalConfig GlobalConfig           `json:"global_config"`
	ModelConfigs map[string]ModelConfig `json:"model_configs"`
}

// Store is a file-backed settings store, safe for concurrent use. Every
// mutation is written through to disk immediately.
type Store struct {
	mu   sync.Mutex
	path string
	doc  settingsDoc
}

// Open loads the settings file under dataDir, or initializes defaults when it
// does not exist yet.
func Open(dataDir string, defaults GlobalConfig) (*Store, error) {
	base, err := fsutil.ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		path: filepath.Join(base, settingsFile),
		doc: settingsDoc{
			GlobalConfig: defaults,
			ModelConfigs: make(map[string]ModelConfig),
		},
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var doc settingsDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if doc.ModelConfigs == nil {
		doc.ModelConfigs = make(map[string]ModelConfig)
	}
	s.doc = doc
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Global returns the global preferences.
func (s *Store) Global() GlobalConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.GlobalConfig
}

// SetGlobal replaces the global preferences and saves.
func (s *Store) SetGlobal(g GlobalConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.GlobalConfig = g
	return s.saveLocked()
}

// ModelConfig returns the stored config for modelPath, or a default built from
// the fallback host and port when none was saved yet.
func (s *Store) ModelConfig(modelPath, fallbackHost string, fallbackPort int) ModelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.doc.ModelConfigs[modelPath]; ok {
		return cfg
	}
	return NewModelConfig(modelPath, fallbackHost, fallbackPort)
}

// SetModelConfig stores a model config and saves.
func (s *Store) SetModelConfig(cfg ModelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ModelConfigs[cfg.ModelPath] = cfg
	return s.saveLocked()
}

// DeleteModelConfig drops the stored config for modelPath, if any.
func (s *Store) DeleteModelConfig(modelPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.ModelConfigs[modelPath]; !ok {
		return nil
	}
	delete(s.doc.ModelConfigs, modelPath)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o644)
}
