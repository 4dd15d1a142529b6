package searchindex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/anyfind/anyfind/internal/errs"
)

// Config configures a Lifecycle, per spec.md §4.C9 and §6.
type Config struct {
	VolatileDir   string
	PersistentDir string
	Buckets       BucketMap
	Log           *logrus.Entry
}

// Lifecycle arbitrates between the volatile working index and the
// persistent on-disk copy, per spec.md §4.C9. It implements
// internal/jobqueue.Indexer so the job queue can drive it directly.
type Lifecycle struct {
	cfg Config

	mu     sync.Mutex
	idx    *Index
	status Status
}

// Open runs the startup sequence from spec.md §4.C9: seed the
// volatile directory from persistent if needed, open (or rebuild) the
// index, and verify the version marker.
func Open(cfg Config) (*Lifecycle, error) {
	l := &Lifecycle{cfg: cfg, status: StatusLoading}

	if _, err := os.Stat(cfg.VolatileDir); os.IsNotExist(err) {
		if _, perr := os.Stat(cfg.PersistentDir); perr == nil {
			cfg.Log.Info("searchindex: seeding volatile index from persistent copy")
			if err := copyDir(cfg.PersistentDir, cfg.VolatileDir); err != nil {
				return nil, fmt.Errorf("anyfind: seed volatile from persistent: %w", err)
			}
		}
	}

	idx, err := openIndex(cfg.VolatileDir, cfg.Buckets, cfg.Log)
	if err != nil {
		return nil, err
	}

	if verr := idx.verifyVersion(); verr != nil {
		cfg.Log.WithError(verr).Warn("searchindex: version check failed, rebuilding volatile index")
		if cerr := idx.Close(); cerr != nil {
			cfg.Log.WithError(cerr).Warn("searchindex: close before rebuild failed")
		}
		if rerr := os.RemoveAll(cfg.VolatileDir); rerr != nil {
			return nil, fmt.Errorf("anyfind: wipe volatile index: %w", rerr)
		}
		idx, err = openIndex(cfg.VolatileDir, cfg.Buckets, cfg.Log)
		if err != nil {
			return nil, err
		}
		if err := idx.ensureVersionDoc(); err != nil {
			return nil, err
		}
	}

	if err := writeStatusFile(cfg.VolatileDir, StatusLoading); err != nil {
		idx.Close()
		return nil, err
	}

	l.idx = idx
	return l, nil
}

// BeginScanning marks the lifecycle as performing the initial full
// scan, per spec.md §4.C9 step 4.
func (l *Lifecycle) BeginScanning() error {
	return l.setStatus(StatusScanning)
}

// BeginMonitoring marks the lifecycle as steady-state live monitoring.
func (l *Lifecycle) BeginMonitoring() error {
	return l.setStatus(StatusMonitoring)
}

func (l *Lifecycle) setStatus(s Status) error {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
	return writeStatusFile(l.cfg.VolatileDir, s)
}

// Status returns the lifecycle's current in-memory status.
func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Add, Remove, and Update delegate straight to the underlying Index,
// satisfying internal/jobqueue.Indexer.
func (l *Lifecycle) Add(path string) error          { return l.idx.Add(path) }
func (l *Lifecycle) Remove(path string) error        { return l.idx.Remove(path) }
func (l *Lifecycle) Update(src, dst string) error    { return l.idx.Update(src, dst) }
func (l *Lifecycle) ExistsPath(p string) (bool, error) { return l.idx.ExistsPath(p) }
func (l *Lifecycle) PrefixWalk(p string) ([]string, error) { return l.idx.PrefixWalk(p) }
func (l *Lifecycle) Search(q string, topN int) ([]Document, error) { return l.idx.Search(q, topN) }

// CommitVolatile ensures the version marker is present and refreshes
// status.json — spec.md §4.C6's short commit window. Since bleve's
// writer already makes every Add/Remove/Update visible to Search
// immediately, there is no separate reader reopen to perform here.
func (l *Lifecycle) CommitVolatile() error {
	if err := l.idx.ensureVersionDoc(); err != nil {
		return err
	}
	return writeStatusFile(l.cfg.VolatileDir, l.Status())
}

// CommitPersistent mirrors the volatile index directory onto the
// persistent directory, per spec.md §4.C6's long commit window: it
// copies into a sibling .tmp directory, removes the old persistent
// directory, then renames the copy into place. The replacement is not
// atomic: a crash between the removal and the rename leaves no
// persistent directory (the .tmp copy remains), never a mixed one.
func (l *Lifecycle) CommitPersistent() error {
	tmp := l.cfg.PersistentDir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("anyfind: clear stale persistent tmp dir: %w", err)
	}
	if err := copyDir(l.cfg.VolatileDir, tmp); err != nil {
		return fmt.Errorf("anyfind: copy volatile to persistent tmp: %w", err)
	}
	if err := os.RemoveAll(l.cfg.PersistentDir); err != nil {
		return fmt.Errorf("anyfind: remove old persistent dir: %w", err)
	}
	if err := os.Rename(tmp, l.cfg.PersistentDir); err != nil {
		return fmt.Errorf("anyfind: swap in new persistent dir: %w", err)
	}
	return nil
}

// Refresh walks every document in the index, removes any whose
// full_path no longer exists on disk or now matches blacklist, and
// reports whether anything changed, per spec.md §4.C9.
func (l *Lifecycle) Refresh(blacklisted func(path string) bool) (changed bool, err error) {
	paths, err := l.idx.PrefixWalk("")
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		stale := blacklisted(p)
		if !stale {
			if _, statErr := os.Stat(p); os.IsNotExist(statErr) {
				stale = true
			}
		}
		if stale {
			if rerr := l.idx.Remove(p); rerr != nil {
				return changed, rerr
			}
			changed = true
		}
	}
	return changed, nil
}

// Shutdown runs spec.md §4.C9's shutdown sequence: mark closed, final
// commit, mirror to persistent, close.
func (l *Lifecycle) Shutdown() error {
	if err := l.setStatus(StatusClosed); err != nil {
		return err
	}
	if err := l.CommitVolatile(); err != nil {
		return err
	}
	if err := l.CommitPersistent(); err != nil {
		return err
	}
	return l.idx.Close()
}

// ReadPersistentStatus reads the status.json sidecar from the
// persistent directory, for `anyfindd status`.
func ReadPersistentStatus(persistentDir string) (Status, error) {
	sf, err := readStatusFile(persistentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: no status.json in %s", errs.ErrNotReady, persistentDir)
		}
		return "", err
	}
	return sf.Status, nil
}

// copyDir recursively copies src onto dst, used for the persistent <->
// volatile mirroring spec.md §4.C9 requires.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
