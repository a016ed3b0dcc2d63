package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "machine.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultIsASingle603WithRAM(t *testing.T) {
	cfg := Default()
	if cfg.CPU.PVR != 0x00030000 {
		t.Errorf("Default CPU.PVR = %#x, want 0x00030000", cfg.CPU.PVR)
	}
	if len(cfg.Regions) != 1 || cfg.Regions[0].Kind != "ram" {
		t.Errorf("Default Regions = %+v, want a single ram region", cfg.Regions)
	}
}

func TestLoadOverridesOnlyMentionedFields(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[cpu]
pvr = 0x00070000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CPU.PVR != 0x00070000 {
		t.Errorf("CPU.PVR = %#x, want 0x00070000", cfg.CPU.PVR)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	// TBRFrequencyHz wasn't mentioned in the file; Default's value survives.
	if cfg.CPU.TBRFrequencyHz != 33_000_000 {
		t.Errorf("unmentioned TBRFrequencyHz = %d, want Default's 33000000", cfg.CPU.TBRFrequencyHz)
	}
}

func TestLoadParsesRegionTable(t *testing.T) {
	path := writeConfig(t, `
[[region]]
name = "rom"
kind = "rom"
base = 0xFFF00000
size = 0x100000
image = "boot.rom"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Regions) != 1 || cfg.Regions[0].Name != "rom" || cfg.Regions[0].Base != 0xFFF00000 {
		t.Errorf("Regions = %+v, want one rom region at 0xFFF00000", cfg.Regions)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatalf("Load of a missing file should error")
	}
}

func TestLoadStrictRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
typo_field = "oops"

[cpu]
pvr = 0x00040000
`)
	_, err := LoadStrict(path)
	if err == nil {
		t.Fatalf("LoadStrict should reject an unrecognized top-level key")
	}
}

func TestLoadStrictAcceptsWellFormedFile(t *testing.T) {
	path := writeConfig(t, `
[cpu]
pvr = 0x00040000
tbr_frequency_hz = 25000000
`)
	cfg, err := LoadStrict(path)
	if err != nil {
		t.Fatalf("LoadStrict: %v", err)
	}
	if cfg.CPU.PVR != 0x00040000 || cfg.CPU.TBRFrequencyHz != 25_000_000 {
		t.Errorf("LoadStrict decoded = %+v", cfg.CPU)
	}
}
