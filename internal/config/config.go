// Package config loads the .erc.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/OpenTraceLab/OpenTraceERC/pkg/erc"
	"github.com/OpenTraceLab/OpenTraceERC/pkg/schematic"
)

// FileName is the project file looked up next to the input schematic.
const FileName = ".erc.toml"

// Config is the decoded project file.
type Config struct {
	Check  Check  `toml:"check"`
	Output Output `toml:"output"`
	Log    Log    `toml:"log"`
	Cache  Cache  `toml:"cache"`

	// Path is the file the config was read from; empty for defaults.
	Path string `toml:"-"`
}

type Check struct {
	Parallel             bool          `toml:"parallel"`
	Jobs                 int           `toml:"jobs"`
	MaxWires             int           `toml:"max_wires"`
	Timeout              time.Duration `toml:"timeout"`
	MergeNetsThroughPins bool          `toml:"merge_nets_through_pins"`
	DisabledRules        []string      `toml:"disabled_rules"`
	Waivers              string        `toml:"waivers"`
}

type Output struct {
	Format string `toml:"format"`
	Color  bool   `toml:"color"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Cache struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Check: Check{
			MaxWires: schematic.MaxWires,
		},
		Output: Output{Format: "text", Color: true},
		Log:    Log{Level: "warn", Format: "text"},
	}
}

// Validate rejects values no command could act on.
func (c *Config) Validate() error {
	var errs []error
	if c.Check.Jobs < 0 {
		errs = append(errs, fmt.Errorf("[check].jobs must not be negative (got %d)", c.Check.Jobs))
	}
	if c.Check.MaxWires < 0 {
		errs = append(errs, fmt.Errorf("[check].max_wires must not be negative (got %d)", c.Check.MaxWires))
	}
	if c.Check.Timeout < 0 {
		errs = append(errs, fmt.Errorf("[check].timeout must not be negative (got %s)", c.Check.Timeout))
	}
	for _, id := range c.Check.DisabledRules {
		if _, ok := erc.LookupRule(id); !ok {
			errs = append(errs, fmt.Errorf("[check].disabled_rules: unknown rule %q", id))
		}
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("[output].format must be text or json (got %q)", c.Output.Format))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("[log].format must be text or json (got %q)", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		if c.Path != "" {
			return fmt.Errorf("%s: %w", c.Path, err)
		}
		return err
	}
	return nil
}

// CheckOptions converts the [check] section into checker options.
func (c *Config) CheckOptions() erc.Options {
	opts := erc.DefaultOptions()
	opts.Parallel = c.Check.Parallel
	if c.Check.Jobs > 0 {
		opts.Jobs = c.Check.Jobs
	}
	opts.MaxWires = c.Check.MaxWires
	opts.Timeout = c.Check.Timeout
	opts.MergeThroughPins = c.Check.MergeNetsThroughPins
	opts.DisabledRules = append([]string(nil), c.Check.DisabledRules...)
	return opts
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path over the defaults and validates the result. Relative
// waiver and cache paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path

	root := filepath.Dir(path)
	if meta.IsDefined("check", "waivers") && cfg.Check.Waivers != "" && !filepath.IsAbs(cfg.Check.Waivers) {
		cfg.Check.Waivers = filepath.Join(root, filepath.FromSlash(cfg.Check.Waivers))
	}
	if meta.IsDefined("cache", "dir") && cfg.Cache.Dir != "" && !filepath.IsAbs(cfg.Cache.Dir) {
		cfg.Cache.Dir = filepath.Join(root, filepath.FromSlash(cfg.Cache.Dir))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Discover loads the nearest project file above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}
