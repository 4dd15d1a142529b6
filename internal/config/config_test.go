package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommitVolatileIndexTimeout != 2*time.Second {
		t.Fatalf("expected default volatile timeout 2s, got %v", cfg.CommitVolatileIndexTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.LogLevel)
	}
}

func TestLoadClampsCommitTimeouts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anyfind.yaml")
	yaml := "commit_volatile_index_timeout: 0\ncommit_persistent_index_timeout: 999999s\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommitVolatileIndexTimeout != time.Second {
		t.Fatalf("expected clamp to 1s, got %v", cfg.CommitVolatileIndexTimeout)
	}
	if cfg.CommitPersistentIndexTimeout != 3600*time.Second {
		t.Fatalf("expected clamp to 3600s, got %v", cfg.CommitPersistentIndexTimeout)
	}
}

func TestLoadNormalizesIndexingPathTrailingSlash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anyfind.yaml")
	yaml := "indexing_paths:\n  - /home/u\n  - /home/v/\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"/home/u/", "/home/v/"}
	for i, p := range want {
		if cfg.IndexingPaths[i] != p {
			t.Fatalf("IndexingPaths[%d] = %q, want %q", i, cfg.IndexingPaths[i], p)
		}
	}
}

func TestLoadBuildsBucketSuffixMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anyfind.yaml")
	yaml := "doc_file_suffix: txt;md\npic_file_suffix: png;jpg\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BucketSuffixes["doc"] != "txt;md" {
		t.Fatalf("unexpected doc suffixes: %q", cfg.BucketSuffixes["doc"])
	}
	if cfg.BucketSuffixes["pic"] != "png;jpg" {
		t.Fatalf("unexpected pic suffixes: %q", cfg.BucketSuffixes["pic"])
	}
}

func TestWatchReloadFiresOnFileReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "anyfind.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	log := logrus.NewEntry(logrus.New())
	if err := WatchReload(ctx, path, log, func(cfg *Config) {
		reloaded <- cfg
	}); err != nil {
		t.Fatalf("WatchReload: %v", err)
	}

	// Editors typically replace the file (write-new + rename), so
	// exercise that path rather than an in-place write.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.LogLevel != "debug" {
			t.Fatalf("expected reloaded log level debug, got %s", cfg.LogLevel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
