package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawConfig is the YAML-unmarshaling intermediary. Pointers tell absent keys
// from explicit zero values.
type rawConfig struct {
	Tree    rawTreeConfig    `yaml:"tree"`
	Filter  rawFilterConfig  `yaml:"filter"`
	Archive rawArchiveConfig `yaml:"archive"`
	Log     LogConfig        `yaml:"log"`
	Web     rawWebConfig     `yaml:"web"`
	Recent  []string         `yaml:"recent"`
}

type rawTreeConfig struct {
	PreloadDepth    *int  `yaml:"preload_depth"`
	ReplaceOnAdd    *bool `yaml:"replace_on_add"`
	ExpandTopLevel  *bool `yaml:"expand_top_level"`
	LoadVolumeRoots *bool `yaml:"load_volume_roots"`
	Watch           *bool `yaml:"watch"`
}

type rawFilterConfig struct {
	Custom     *bool             `yaml:"custom"`
	CustomList *string           `yaml:"custom_list"`
	Categories rawCategoryConfig `yaml:"categories"`
}

type rawCategoryConfig struct {
	Any     *bool `yaml:"any"`
	Archive *bool `yaml:"archive"`
	Txt     *bool `yaml:"txt"`
	Ini     *bool `yaml:"ini"`
	Log     *bool `yaml:"log"`
}

type rawArchiveConfig struct {
	TempDir               string `yaml:"temp_dir"`
	DeleteExtractedOnExit *bool  `yaml:"delete_extracted_on_exit"`
}

type rawWebConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Load reads the default config file and the environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads path (the default location when empty), then applies
// LAZYTREE_* environment overrides. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, applyEnv(cfg)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var raw rawConfig
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		mergeConfig(cfg, &raw)
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Archive.TempDir = ExpandPath(cfg.Archive.TempDir)
	cfg.Log.File = ExpandPath(cfg.Log.File)
	cfg.pruneRecent()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeConfig(cfg *Config, raw *rawConfig) {
	setInt(&cfg.Tree.PreloadDepth, raw.Tree.PreloadDepth)
	setBool(&cfg.Tree.ReplaceOnAdd, raw.Tree.ReplaceOnAdd)
	setBool(&cfg.Tree.ExpandTopLevel, raw.Tree.ExpandTopLevel)
	setBool(&cfg.Tree.LoadVolumeRoots, raw.Tree.LoadVolumeRoots)
	setBool(&cfg.Tree.Watch, raw.Tree.Watch)

	setBool(&cfg.Filter.Custom, raw.Filter.Custom)
	if raw.Filter.CustomList != nil {
		cfg.Filter.CustomList = *raw.Filter.CustomList
	}
	cats := cfg.Filter.Categories
	setBool(&cats.Any, raw.Filter.Categories.Any)
	setBool(&cats.Archive, raw.Filter.Categories.Archive)
	setBool(&cats.Txt, raw.Filter.Categories.Txt)
	setBool(&cats.Ini, raw.Filter.Categories.Ini)
	setBool(&cats.Log, raw.Filter.Categories.Log)
	cfg.Filter.Categories = cfg.Filter.Categories.Transition(cats)

	if raw.Archive.TempDir != "" {
		cfg.Archive.TempDir = raw.Archive.TempDir
	}
	setBool(&cfg.Archive.DeleteExtractedOnExit, raw.Archive.DeleteExtractedOnExit)

	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.Format != "" {
		cfg.Log.Format = raw.Log.Format
	}
	if raw.Log.File != "" {
		cfg.Log.File = raw.Log.File
	}

	if raw.Web.Addr != "" {
		cfg.Web.Addr = raw.Web.Addr
	}
	if len(raw.Web.CORSOrigins) > 0 {
		cfg.Web.CORSOrigins = raw.Web.CORSOrigins
	}

	cfg.Recent = raw.Recent
}

// applyEnv overrides settings from LAZYTREE_* variables.
func applyEnv(cfg *Config) error {
	var errs []string
	envInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	envBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	envString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envInt("LAZYTREE_PRELOAD_DEPTH", &cfg.Tree.PreloadDepth)
	envBool("LAZYTREE_REPLACE_ON_ADD", &cfg.Tree.ReplaceOnAdd)
	envBool("LAZYTREE_WATCH", &cfg.Tree.Watch)
	envBool("LAZYTREE_DELETE_EXTRACTED", &cfg.Archive.DeleteExtractedOnExit)
	envString("LAZYTREE_TEMP_DIR", &cfg.Archive.TempDir)
	envString("LAZYTREE_FILTER", &cfg.Filter.CustomList)
	envString("LAZYTREE_LOG_LEVEL", &cfg.Log.Level)
	envString("LAZYTREE_LOG_FORMAT", &cfg.Log.Format)
	envString("LAZYTREE_LOG_FILE", &cfg.Log.File)
	envString("LAZYTREE_WEB_ADDR", &cfg.Web.Addr)
	if v := os.Getenv("LAZYTREE_CORS_ORIGINS"); v != "" {
		cfg.Web.CORSOrigins = strings.Split(v, ",")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
