package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"otpdeck/internal/logging"
)

func TestGetStateDir(t *testing.T) {
	t.Run("uses environment variable", func(t *testing.T) {
		t.Setenv(StateDirEnv, "/custom/state")
		if got := GetStateDir(); got != "/custom/state" {
			t.Errorf("GetStateDir() = %v, want /custom/state", got)
		}
	})

	t.Run("falls back to home state dir", func(t *testing.T) {
		t.Setenv(StateDirEnv, "")
		got := GetStateDir()
		if !strings.HasSuffix(got, "otpdeck") {
			t.Errorf("GetStateDir() = %v, want path ending in otpdeck", got)
		}
	})
}

func TestEnsureStateDirectory(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "newdir")
			},
		},
		{
			name: "succeeds if directory exists",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := filepath.Join(t.TempDir(), "existingdir")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					t.Fatalf("setup failed: %v", err)
				}
				return dir
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "a", "b", "c")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)

			if err := EnsureStateDirectory(path); err != nil {
				t.Fatalf("EnsureStateDirectory() error = %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("directory not created: %v", err)
			}
			if !info.IsDir() {
				t.Errorf("path is not a directory")
			}
		})
	}
}

func TestAtomicWriteFile(t *testing.T) {
	logger := logging.NewLogger(logging.LevelError)

	tests := []struct {
		name  string
		setup func(t *testing.T) (string, []byte)
	}{
		{
			name: "writes new file atomically",
			setup: func(t *testing.T) (string, []byte) {
				t.Helper()
				return filepath.Join(t.TempDir(), "secrets.json"), []byte(`{"secrets":[]}`)
			},
		},
		{
			name: "overwrites existing file",
			setup: func(t *testing.T) (string, []byte) {
				t.Helper()
				path := filepath.Join(t.TempDir(), "existing.json")
				_ = os.WriteFile(path, []byte("old content"), 0o600)
				return path, []byte("new content")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, data := tt.setup(t)

			if err := AtomicWriteFile(path, data, DefaultFilePermissions, logger); err != nil {
				t.Fatalf("AtomicWriteFile() error = %v", err)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if string(got) != string(data) {
				t.Errorf("file content = %q, want %q", got, data)
			}

			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temp file still exists: %s", path+".tmp")
			}
		})
	}
}

func TestAtomicWriteFile_MissingDirectoryKeepsNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "secrets.json")

	if err := AtomicWriteFile(path, []byte("data"), DefaultFilePermissions, nil); err == nil {
		t.Fatal("expected error writing into a missing directory")
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("target should not exist after failed write")
	}
}

func TestCloseWithError(t *testing.T) {
	logger := logging.NewLogger(logging.LevelError)

	tests := []struct {
		name   string
		closer func() error
	}{
		{"successful close", func() error { return nil }},
		{"close with error", func() error { return os.ErrClosed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Should not panic
			CloseWithError(tt.closer, logger, "test_resource")
			CloseWithError(tt.closer, nil, "test_resource")
		})
	}
}
