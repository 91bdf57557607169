package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFileMergesOverDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redisd.yml")
	contents := "host: 127.0.0.1\nport: 6380\npassword: secret\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	fileCfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	merged := Merge(Default(), fileCfg)
	if merged.Host != "127.0.0.1" || merged.Port != 6380 || merged.Password != "secret" {
		t.Fatalf("merged = %+v", merged)
	}
	// Fields the file didn't set keep Default's values.
	if merged.Databases != 16 {
		t.Fatalf("expected default databases to survive merge, got %d", merged.Databases)
	}
}

func TestParseFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "redisd.yml")
	if err := os.WriteFile(path, []byte("bogus_key: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(path); err == nil {
		t.Fatal("expected an error for an unknown config key")
	}
}

func TestParseFileEmptyPath(t *testing.T) {
	cfg, err := ParseFile("")
	if err != nil {
		t.Fatalf("ParseFile(\"\"): %v", err)
	}
	if cfg != (Config{}) {
		t.Fatalf("expected zero Config, got %+v", cfg)
	}
}

func TestMergeOverrideWins(t *testing.T) {
	base := Config{Host: "a", Port: 1, Databases: 16}
	override := Config{Host: "b"}
	got := Merge(base, override)
	if got.Host != "b" || got.Port != 1 || got.Databases != 16 {
		t.Fatalf("merge = %+v", got)
	}
}
