package jobqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeIndexer struct {
	added     []string
	removed   []string
	updated   [][2]string
	volatileC int
	persistC  int
}

func (f *fakeIndexer) Add(path string) error      { f.added = append(f.added, path); return nil }
func (f *fakeIndexer) Remove(path string) error   { f.removed = append(f.removed, path); return nil }
func (f *fakeIndexer) Update(src, dst string) error {
	f.updated = append(f.updated, [2]string{src, dst})
	return nil
}
func (f *fakeIndexer) CommitVolatile() error   { f.volatileC++; return nil }
func (f *fakeIndexer) CommitPersistent() error { f.persistC++; return nil }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return logrus.NewEntry(l)
}

func TestConfigClampsCommitIntervals(t *testing.T) {
	cfg := Config{VolatileCommitInterval: 0, PersistentCommitInterval: 0}
	cfg.clamp()
	if cfg.VolatileCommitInterval != time.Second {
		t.Fatalf("expected volatile clamp to 1s, got %v", cfg.VolatileCommitInterval)
	}
	if cfg.PersistentCommitInterval != 60*time.Second {
		t.Fatalf("expected persistent clamp to 60s, got %v", cfg.PersistentCommitInterval)
	}

	cfg2 := Config{VolatileCommitInterval: time.Hour, PersistentCommitInterval: time.Hour * 10}
	cfg2.clamp()
	if cfg2.VolatileCommitInterval != 60*time.Second {
		t.Fatalf("expected volatile clamp to 60s max, got %v", cfg2.VolatileCommitInterval)
	}
	if cfg2.PersistentCommitInterval != 3600*time.Second {
		t.Fatalf("expected persistent clamp to 3600s max, got %v", cfg2.PersistentCommitInterval)
	}
}

func TestConfigWorkersEnvOverridesConfiguredValue(t *testing.T) {
	os.Setenv("ANYFIND_WORKERS", "3")
	defer os.Unsetenv("ANYFIND_WORKERS")

	cfg := Config{Workers: 8}
	cfg.clamp()
	if cfg.Workers != 3 {
		t.Fatalf("expected ANYFIND_WORKERS to override configured value, got %d", cfg.Workers)
	}
}

func TestConfigWorkersFallsBackToDefaultWithoutEnv(t *testing.T) {
	os.Unsetenv("ANYFIND_WORKERS")

	cfg := Config{}
	cfg.clamp()
	if cfg.Workers != workerDefault() {
		t.Fatalf("expected default worker count, got %d", cfg.Workers)
	}

	cfg2 := Config{Workers: 5}
	cfg2.clamp()
	if cfg2.Workers != 5 {
		t.Fatalf("expected configured worker count to be kept, got %d", cfg2.Workers)
	}
}

func TestEnqueueBatchFlushesAtBatchSize(t *testing.T) {
	idx := &fakeIndexer{}
	q := New(Config{BatchSize: 2}, idx, testLogger())

	q.Enqueue(Job{Type: JobAdd, Src: "/a"})
	if len(idx.added) != 0 {
		t.Fatalf("expected no flush before batch size reached")
	}
	q.Enqueue(Job{Type: JobAdd, Src: "/b"})
	if len(idx.added) != 2 {
		t.Fatalf("expected flush at batch size, got %v", idx.added)
	}
}

func TestDrainAppliesUpdateAndRemove(t *testing.T) {
	idx := &fakeIndexer{}
	q := New(Config{BatchSize: 100}, idx, testLogger())

	q.Enqueue(Job{Type: JobRemove, Src: "/a"})
	q.Enqueue(Job{Type: JobUpdate, Src: "/b", Dst: "/c"})
	q.Drain()

	if len(idx.removed) != 1 || idx.removed[0] != "/a" {
		t.Fatalf("unexpected removed: %v", idx.removed)
	}
	if len(idx.updated) != 1 || idx.updated[0] != [2]string{"/b", "/c"} {
		t.Fatalf("unexpected updated: %v", idx.updated)
	}
}

func TestScanWalksDirectoryAndRespectsStop(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	idx := &fakeIndexer{}
	q := New(Config{}, idx, testLogger())

	q.StopScanning()
	if err := q.scan(dir); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(idx.added) != 0 {
		t.Fatalf("expected scan to bail immediately when stopped, got %v", idx.added)
	}

	q.ResetScanning()
	if err := q.scan(dir); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(idx.added) == 0 {
		t.Fatalf("expected scan to index files once resumed")
	}
}

func TestGCDPicksCorrectTick(t *testing.T) {
	if got := gcd(2*time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("gcd mismatch: %v", got)
	}
}
