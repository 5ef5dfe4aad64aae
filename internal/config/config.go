// Package config holds lazytree settings and reads them from a YAML file and
// LAZYTREE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"lazytree/internal/tree"
)

const (
	configDir  = ".config/lazytree"
	configFile = "config.yaml"

	// MaxRecent is the number of recent paths kept.
	MaxRecent = 30
	// MaxPreloadDepth bounds the eager build depth.
	MaxPreloadDepth = 16
)

// Config is the complete lazytree configuration.
type Config struct {
	Tree    TreeConfig
	Filter  tree.FilterSettings
	Archive ArchiveConfig
	Log     LogConfig
	Web     WebConfig
	Recent  []string
}

type TreeConfig struct {
	// PreloadDepth is how many levels are built eagerly. Zero uses the
	// builder default.
	PreloadDepth    int
	ReplaceOnAdd    bool
	ExpandTopLevel  bool
	LoadVolumeRoots bool
	Watch           bool
}

type ArchiveConfig struct {
	TempDir               string
	DeleteExtractedOnExit bool
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type WebConfig struct {
	Addr        string
	CORSOrigins []string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Tree: TreeConfig{
			ExpandTopLevel:  true,
			LoadVolumeRoots: true,
			Watch:           true,
		},
		Filter: tree.DefaultFilterSettings(),
		Archive: ArchiveConfig{
			DeleteExtractedOnExit: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Web: WebConfig{
			Addr:        "127.0.0.1:8080",
			CORSOrigins: []string{"http://localhost:8080"},
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Tree.PreloadDepth < 0 || c.Tree.PreloadDepth > MaxPreloadDepth {
		return fmt.Errorf("preload depth must be between 0 and %d, got %d", MaxPreloadDepth, c.Tree.PreloadDepth)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Web.Addr == "" {
		return fmt.Errorf("web address is empty")
	}
	return nil
}

// AddRecent puts path at the front of the recent list, removing duplicates
// and trimming the list to MaxRecent.
func (c *Config) AddRecent(path string) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	out := []string{path}
	for _, p := range c.Recent {
		if !samePath(p, path) {
			out = append(out, p)
		}
	}
	if len(out) > MaxRecent {
		out = out[:MaxRecent]
	}
	c.Recent = out
}

// pruneRecent drops missing and duplicate paths.
func (c *Config) pruneRecent() {
	var out []string
	for _, p := range c.Recent {
		p = ExpandPath(p)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		dup := false
		for _, q := range out {
			if samePath(p, q) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	if len(out) > MaxRecent {
		out = out[:MaxRecent]
	}
	c.Recent = out
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// DefaultPath is ~/.config/lazytree/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir, configFile), nil
}
