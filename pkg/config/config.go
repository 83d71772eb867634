// Package config loads the JSON configuration file spec.md §6
// describes: architecture (endianness, word size), default paths, and
// which output artefacts to generate. Grounded on
// original_source/src/config_loader.py's TASMConfig — this package
// keeps that file's get/default shape and its reload-after-construction
// behaviour (the `-c`/`--config` flag can swap the active configuration
// after the default has already loaded), but replaces its process-wide
// singleton with a plain *Loader value cmd/tasm constructs once and
// passes down the pipeline, per spec.md §9's "no module-global state"
// design note.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/encode"
)

// Architecture mirrors spec.md §6's architecture.* keys.
type Architecture struct {
	Endianness string `json:"endianness"`
	WordSize   int    `json:"word_size"`
}

// Paths mirrors spec.md §6's paths.* keys.
type Paths struct {
	InstructionSet string `json:"instruction_set"`
	OutputDir      string `json:"output_dir"`
}

// Output mirrors spec.md §6's output.* keys.
type Output struct {
	GenerateLST   bool `json:"generate_lst"`
	GenerateBIN   bool `json:"generate_bin"`
	GenerateHex   bool `json:"generate_hex"`
	GenerateMap   bool `json:"generate_map"`
	EnableMacros  bool `json:"enable_macros"`
}

// Config is the fully-parsed, defaulted configuration document.
type Config struct {
	Architecture Architecture `json:"architecture"`
	Paths        Paths        `json:"paths"`
	Output       Output       `json:"output"`
}

func defaults() Config {
	return Config{
		Architecture: Architecture{Endianness: "little", WordSize: 32},
		Paths:        Paths{OutputDir: "output"},
		Output: Output{
			GenerateLST:  true,
			GenerateBIN:  true,
			GenerateHex:  true,
			GenerateMap:  true,
			EnableMacros: true,
		},
	}
}

// Loader owns the currently-active Config and the path it was read
// from, so a later -c/--config flag can Reload onto a fresh path
// without callers needing to re-thread the result by hand.
type Loader struct {
	path   string
	active Config
}

// Load reads and validates the JSON configuration file at path,
// applying spec.md §6's documented defaults for any key the file
// omits. A missing file is not an error: it yields the all-defaults
// Config, since every key in §6 already has a named default.
func Load(path string, bag *diag.Bag) *Loader {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Loader{path: path, active: cfg}
		}
		bag.Errorf(diag.KindConfigError, diag.Location{File: path}, "reading configuration: %v", err)
		return &Loader{path: path, active: cfg}
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		bag.Errorf(diag.KindConfigError, diag.Location{File: path}, "parsing configuration: %v", err)
		return &Loader{path: path, active: defaults()}
	}

	if err := validate(cfg); err != nil {
		bag.Errorf(diag.KindConfigError, diag.Location{File: path}, "%v", err)
		return &Loader{path: path, active: defaults()}
	}

	return &Loader{path: path, active: cfg}
}

// Reload re-reads configuration from a new path, replacing the
// Loader's active Config in place — the Go equivalent of
// config_loader.py's singleton reload(), minus the singleton: cmd/tasm
// owns the one *Loader instance and calls Reload itself when -c names
// an alternate file.
func (l *Loader) Reload(path string, bag *diag.Bag) {
	next := Load(path, bag)
	l.path = next.path
	l.active = next.active
}

// Active returns the currently loaded configuration.
func (l *Loader) Active() Config {
	return l.active
}

// Path returns the file path the active configuration was read from.
func (l *Loader) Path() string {
	return l.path
}

func validate(cfg Config) error {
	switch cfg.Architecture.Endianness {
	case "little", "big", "":
	default:
		return fmt.Errorf("architecture.endianness must be \"little\" or \"big\", got %q", cfg.Architecture.Endianness)
	}
	switch cfg.Architecture.WordSize {
	case 0, 16, 32:
	default:
		return fmt.Errorf("architecture.word_size must be 16 or 32, got %d", cfg.Architecture.WordSize)
	}
	return nil
}

// Endian translates the configured endianness string into
// pkg/encode's enum, the form every downstream stage actually wants.
func (c Config) Endian() encode.Endianness {
	if c.Architecture.Endianness == "big" {
		return encode.BigEndian
	}
	return encode.LittleEndian
}

// ResolveOutputDir returns the configured output directory as an
// absolute path, creating it if it does not yet exist — mirrors
// original_source/src/utils.py's create_output_dir
// (Path.mkdir(parents=True, exist_ok=True)) and the teacher's
// pkg/utils.GetPathInfo preference for absolute paths over relative
// ones threaded through the pipeline.
func (c Config) ResolveOutputDir() (string, error) {
	dir := c.Paths.OutputDir
	if dir == "" {
		dir = "output"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", abs, err)
	}
	return abs, nil
}
