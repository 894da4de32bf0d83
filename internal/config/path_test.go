package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	t.Setenv("WAYFARER_TEST_DIR", "/tmp/wayfarer")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"absolute unchanged", "/var/lib/wayfarer.db", "/var/lib/wayfarer.db"},
		{"tilde slash", "~/data/wayfarer.db", filepath.Join(home, "data/wayfarer.db")},
		{"bare tilde", "~", home},
		{"env var", "$WAYFARER_TEST_DIR/wayfarer.db", "/tmp/wayfarer/wayfarer.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandPath(tt.in); got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultDatabasePath(t *testing.T) {
	got := DefaultDatabasePath()
	if got == "" {
		t.Fatal("expected a non-empty default path")
	}
	if filepath.Base(got) != "wayfarer.db" {
		t.Errorf("unexpected database file name in %q", got)
	}
}
