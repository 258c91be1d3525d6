package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadApplicationConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vortex.toml")
	content := `
name = "Config Test"
start_width = 1920
start_height = 1080
log_level = "warn"
asset_root = "assets"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadApplicationConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if config.Name != "Config Test" {
		t.Fatalf("Name = %q", config.Name)
	}
	if config.StartWidth != 1920 || config.StartHeight != 1080 {
		t.Fatalf("size = %dx%d, want 1920x1080", config.StartWidth, config.StartHeight)
	}
	if config.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q", config.LogLevel)
	}
	if config.AssetRoot != "assets" {
		t.Fatalf("AssetRoot = %q", config.AssetRoot)
	}

	// Fields the file omits keep their defaults.
	if config.StartPosX != 100 || config.StartPosY != 100 {
		t.Fatalf("start position = (%d, %d), want defaults", config.StartPosX, config.StartPosY)
	}
	if config.PagerWorkers != 2 {
		t.Fatalf("PagerWorkers = %d, want default 2", config.PagerWorkers)
	}
}

func TestLoadApplicationConfigMissingFile(t *testing.T) {
	if _, err := LoadApplicationConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}

func TestLoadApplicationConfigRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("name = [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadApplicationConfig(path); err == nil {
		t.Fatal("expected an error for malformed TOML")
	}
}
