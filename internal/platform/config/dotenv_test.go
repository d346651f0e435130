package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Cleanup(func() { clearEnv(t) })
	t.Setenv("LEXI_SERVER_PORT", "9000")

	path := filepath.Join(t.TempDir(), ".env")
	content := "LEXI_SERVER_PORT=7000\nLEXI_AI_PRIMARY_MODEL=from-file\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 (process env wins)", cfg.Server.Port)
	}
	if cfg.AI.PrimaryModel != "from-file" {
		t.Errorf("AI.PrimaryModel = %q, want from-file", cfg.AI.PrimaryModel)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"no such file", filepath.Join(t.TempDir(), "absent.env")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := LoadDotEnv(tt.path); err != nil {
				t.Errorf("LoadDotEnv(%q) error = %v, want nil", tt.path, err)
			}
		})
	}
}
