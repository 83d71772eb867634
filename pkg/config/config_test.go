package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aurixinino/TASM/pkg/diag"
	"github.com/aurixinino/TASM/pkg/encode"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasm_config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	bag := &diag.Bag{}
	l := Load(filepath.Join(t.TempDir(), "missing.json"), bag)
	if bag.HasFatal() {
		t.Fatalf("a missing config file should not be fatal: %s", bag.Format())
	}
	cfg := l.Active()
	if cfg.Architecture.Endianness != "little" {
		t.Fatalf("expected default endianness little, got %q", cfg.Architecture.Endianness)
	}
	if !cfg.Output.GenerateBIN {
		t.Fatal("expected generate_bin to default true")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"architecture": {"endianness": "big", "word_size": 16},
		"output": {"generate_map": false}
	}`)
	bag := &diag.Bag{}
	l := Load(path, bag)
	if bag.HasFatal() {
		t.Fatalf("unexpected failure: %s", bag.Format())
	}
	cfg := l.Active()
	if cfg.Architecture.Endianness != "big" || cfg.Endian() != encode.BigEndian {
		t.Fatalf("expected big endian, got %+v", cfg.Architecture)
	}
	if cfg.Output.GenerateMap {
		t.Fatal("expected generate_map overridden to false")
	}
	if !cfg.Output.GenerateBIN {
		t.Fatal("expected generate_bin to keep its default true since the file did not mention it")
	}
}

func TestLoadRejectsBadEndianness(t *testing.T) {
	path := writeConfig(t, `{"architecture": {"endianness": "middle"}}`)
	bag := &diag.Bag{}
	Load(path, bag)
	if !bag.HasFatal() {
		t.Fatal("expected a ConfigError for an invalid endianness value")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not valid json`)
	bag := &diag.Bag{}
	Load(path, bag)
	if !bag.HasFatal() {
		t.Fatal("expected a ConfigError for malformed JSON")
	}
}

func TestReloadSwapsActiveConfig(t *testing.T) {
	defaultPath := writeConfig(t, `{"architecture": {"endianness": "little"}}`)
	altPath := writeConfig(t, `{"architecture": {"endianness": "big"}}`)

	bag := &diag.Bag{}
	l := Load(defaultPath, bag)
	if l.Active().Architecture.Endianness != "little" {
		t.Fatal("expected initial load to be little-endian")
	}

	l.Reload(altPath, bag)
	if l.Active().Architecture.Endianness != "big" {
		t.Fatal("expected reload to swap in the alternate config's big-endian setting")
	}
	if l.Path() != altPath {
		t.Fatalf("expected Path() to report %s, got %s", altPath, l.Path())
	}
}
