package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lazytree/internal/tree"
)

// saveConfig is the YAML-marshaling intermediary.
type saveConfig struct {
	Tree    saveTreeConfig      `yaml:"tree"`
	Filter  tree.FilterSettings `yaml:"filter"`
	Archive saveArchiveConfig   `yaml:"archive"`
	Log     saveLogConfig       `yaml:"log"`
	Web     saveWebConfig       `yaml:"web"`
	Recent  []string            `yaml:"recent,omitempty"`
}

type saveTreeConfig struct {
	PreloadDepth    int  `yaml:"preload_depth"`
	ReplaceOnAdd    bool `yaml:"replace_on_add"`
	ExpandTopLevel  bool `yaml:"expand_top_level"`
	LoadVolumeRoots bool `yaml:"load_volume_roots"`
	Watch           bool `yaml:"watch"`
}

type saveArchiveConfig struct {
	TempDir               string `yaml:"temp_dir,omitempty"`
	DeleteExtractedOnExit bool   `yaml:"delete_extracted_on_exit"`
}

type saveLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

type saveWebConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

func toSaveConfig(cfg *Config) saveConfig {
	return saveConfig{
		Tree: saveTreeConfig{
			PreloadDepth:    cfg.Tree.PreloadDepth,
			ReplaceOnAdd:    cfg.Tree.ReplaceOnAdd,
			ExpandTopLevel:  cfg.Tree.ExpandTopLevel,
			LoadVolumeRoots: cfg.Tree.LoadVolumeRoots,
			Watch:           cfg.Tree.Watch,
		},
		Filter: cfg.Filter,
		Archive: saveArchiveConfig{
			TempDir:               cfg.Archive.TempDir,
			DeleteExtractedOnExit: cfg.Archive.DeleteExtractedOnExit,
		},
		Log: saveLogConfig{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		},
		Web: saveWebConfig{
			Addr:        cfg.Web.Addr,
			CORSOrigins: cfg.Web.CORSOrigins,
		},
		Recent: cfg.Recent,
	}
}

// Save writes cfg to the default location.
func Save(cfg *Config) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to path, creating its directory.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(toSaveConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp, path)
}
