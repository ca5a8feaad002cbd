// Package config reads xbps.d configuration files: line-oriented
// key=value pairs, comments, and include globs, per spec.md §6. The
// spec explicitly calls this parser "trivial" and out of the core's
// scope, but ambient concerns are carried regardless of Non-goals (see
// SPEC_FULL.md §2.3), so it gets a real, tested implementation here.
//
// This is hand-rolled against the standard library rather than built on
// a third-party format library: the grammar (bare key=value lines, a
// directory-depth-limited include glob, no sections/nesting/types) does
// not match TOML, YAML, or INI closely enough for any of those parsers
// to be a net simplification, and no library in the example corpus
// parses this exact grammar. See DESIGN.md for the stdlib-justification
// entry.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the parsed, merged settings from one or more xbps.d
// files. Repeated keys accumulate (Repositories, IgnorePkgs, ...);
// scalar keys take the last value seen, matching a simple override-by-
// later-file convention.
type Config struct {
	Architecture string
	BestMatching bool
	CacheDir     string
	RootDir      string
	Syslog       bool

	Repositories []string
	IgnorePkgs   []string
	NoExtract    []string
	Preserve     []string
	VirtualPkgs  map[string]string // vpkg[-version] -> provider-name-or-pattern
}

// New returns an empty Config with maps initialized.
func New() *Config {
	return &Config{VirtualPkgs: make(map[string]string)}
}

// Load parses path and, recursively (one level of glob depth, per
// spec's "include (depth-1 only)"), any files its include directives
// name, merging everything into a fresh Config.
func Load(path string) (*Config, error) {
	cfg := New()
	if err := cfg.loadFile(path, 0); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

const maxIncludeDepth = 1

func (c *Config) loadFile(path string, depth int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("%s:%d: malformed line %q (expected key=value)", path, lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key == "include" {
			if depth >= maxIncludeDepth {
				return fmt.Errorf("%s:%d: include directives do not nest", path, lineNo)
			}
			pattern := value
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(filepath.Dir(path), pattern)
			}
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return fmt.Errorf("%s:%d: bad include glob %q: %w", path, lineNo, value, err)
			}
			for _, m := range matches {
				if err := c.loadFile(m, depth+1); err != nil {
					return err
				}
			}
			continue
		}

		if err := c.setKey(key, value); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return sc.Err()
}

func (c *Config) setKey(key, value string) error {
	switch key {
	case "architecture":
		c.Architecture = value
	case "bestmatching":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("bestmatching: %w", err)
		}
		c.BestMatching = b
	case "cachedir":
		c.CacheDir = value
	case "rootdir":
		c.RootDir = value
	case "syslog":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("syslog: %w", err)
		}
		c.Syslog = b
	case "repository":
		c.Repositories = append(c.Repositories, value)
	case "ignorepkg":
		c.IgnorePkgs = append(c.IgnorePkgs, value)
	case "noextract":
		c.NoExtract = append(c.NoExtract, value)
	case "preserve":
		c.Preserve = append(c.Preserve, value)
	case "virtualpkg":
		vpkg, provider, ok := strings.Cut(value, ":")
		if !ok {
			return fmt.Errorf("virtualpkg: expected <vpkg>:<provider>, got %q", value)
		}
		c.VirtualPkgs[vpkg] = provider
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
	return nil
}

// applyEnv overrides fields from the environment per spec §6:
// XBPS_TARGET_ARCH > XBPS_ARCH > configured architecture.
func (c *Config) applyEnv() {
	if a := os.Getenv("XBPS_ARCH"); a != "" {
		c.Architecture = a
	}
	if a := os.Getenv("XBPS_TARGET_ARCH"); a != "" {
		c.Architecture = a
	}
}

// TempDir returns TMPDIR if set, else os.TempDir().
func TempDir() string {
	if d := os.Getenv("TMPDIR"); d != "" {
		return d
	}
	return os.TempDir()
}
