// Package jobqueue converts filtered scope decisions into index jobs,
// batches them, and drives the two-level volatile/persistent commit
// timers from spec.md §4.C6.
package jobqueue

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sirupsen/logrus"
)

// JobType mirrors spec.md §3's index_job type enum.
type JobType int

const (
	JobAdd JobType = iota
	JobRemove
	JobUpdate
	JobScan
)

// Job is a single unit of index work, never persisted, per spec.md §3.
type Job struct {
	Type JobType
	Src  string
	Dst  string // JobUpdate only
}

// Indexer is the subset of internal/searchindex.Index the queue drives.
// Kept as an interface so the queue is unit-testable without a real
// bleve index.
type Indexer interface {
	Add(path string) error
	Remove(path string) error
	Update(src, dst string) error
	CommitVolatile() error
	CommitPersistent() error
}

// Config holds the tunables from spec.md §4.C6 and §6.
type Config struct {
	BatchSize               int
	VolatileCommitInterval  time.Duration // clamped [1s, 60s]
	PersistentCommitInterval time.Duration // clamped [60s, 3600s]
	Workers                 int           // default max(NumCPU-3, 1)
	ScanRateLimit           float64       // files/sec, 0 = unlimited
}

// clamp applies the bounds spec.md §6 requires on the two commit timers
// and fills in the worker-pool default.
func (c *Config) clamp() {
	if c.VolatileCommitInterval < time.Second {
		c.VolatileCommitInterval = time.Second
	}
	if c.VolatileCommitInterval > 60*time.Second {
		c.VolatileCommitInterval = 60 * time.Second
	}
	if c.PersistentCommitInterval < 60*time.Second {
		c.PersistentCommitInterval = 60 * time.Second
	}
	if c.PersistentCommitInterval > 3600*time.Second {
		c.PersistentCommitInterval = 3600 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if n, ok := workersFromEnv(); ok {
		c.Workers = n
	}
	if c.Workers <= 0 {
		c.Workers = workerDefault()
	}
}

// workersFromEnv reads the ANYFIND_WORKERS override spec.md §6 and
// SPEC_FULL.md §4.C6 require, taking precedence over both the
// configured value and the CPU-derived default. A missing or
// non-positive value is ignored, falling through to those.
func workersFromEnv() (int, bool) {
	v := os.Getenv("ANYFIND_WORKERS")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func workerDefault() int {
	n := runtime.NumCPU() - 3
	if n < 1 {
		n = 1
	}
	return n
}

// gcd computes the greatest common divisor of two durations so a single
// timer thread can wake at the cadence that serves both commit windows,
// per spec.md §4.C6.
func gcd(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Queue batches jobs and drains them through a worker pool, flipping
// volatile/persistent dirty flags and driving commits on their
// independent timers.
type Queue struct {
	cfg     Config
	idx     Indexer
	log     *logrus.Entry
	limiter *rate.Limiter

	mu      sync.Mutex
	pending []Job
	notify  chan struct{}

	volatileDirty   atomic.Bool
	persistentDirty atomic.Bool
	stopScanning    atomic.Bool
}

func New(cfg Config, idx Indexer, log *logrus.Entry) *Queue {
	cfg.clamp()
	var limiter *rate.Limiter
	if cfg.ScanRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ScanRateLimit), int(cfg.ScanRateLimit))
	}
	return &Queue{
		cfg:     cfg,
		idx:     idx,
		log:     log,
		limiter: limiter,
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the tail of the pending batch and marks the
// relevant dirty flags, per spec.md §4.C6.
func (q *Queue) Enqueue(j Job) {
	q.mu.Lock()
	q.pending = append(q.pending, j)
	full := len(q.pending) >= q.cfg.BatchSize
	q.mu.Unlock()

	q.volatileDirty.Store(true)
	q.persistentDirty.Store(true)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	if full {
		q.drainOnce()
	}
}

// drainOnce pops the whole pending batch and applies it against the
// indexer, one job at a time. Job ordering within a batch is preserved,
// matching spec.md §5's "same path delivered in kernel order" guarantee.
func (q *Queue) drainOnce() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, j := range batch {
		if err := q.apply(j); err != nil {
			q.log.WithError(err).WithField("job", j).Warn("jobqueue: apply failed")
		}
	}
}

func (q *Queue) apply(j Job) error {
	switch j.Type {
	case JobAdd:
		return q.idx.Add(j.Src)
	case JobRemove:
		return q.idx.Remove(j.Src)
	case JobUpdate:
		return q.idx.Update(j.Src, j.Dst)
	case JobScan:
		return q.scan(j.Src)
	default:
		return nil
	}
}

// scan walks a directory tree and indexes every entry, honoring the
// shared stop flag and an optional rate limiter, per spec.md §4.C6 and
// the scan-throttle recovery in SPEC_FULL.md §4.C6. The walk itself is
// sequential (directory order doesn't matter for a cold-start scan),
// but the per-file stat+index work fans out across the configured
// worker pool, the one place in this package where Config.Workers is
// actually exercised — the commit-draining path stays single-threaded
// to preserve the "same path in kernel order" guarantee.
func (q *Queue) scan(root string) error {
	paths := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if q.limiter != nil {
					_ = q.limiter.Wait(context.Background())
				}
				if err := q.idx.Add(path); err != nil {
					q.log.WithError(err).WithField("path", path).Warn("jobqueue: scan add failed")
				}
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if q.stopScanning.Load() {
			return filepath.SkipAll
		}
		if err != nil {
			return nil
		}
		paths <- path
		return nil
	})
	close(paths)
	wg.Wait()
	return walkErr
}

// StopScanning flips the shared atomic flag observed by in-flight scans,
// per spec.md §5's cancellation model.
func (q *Queue) StopScanning() { q.stopScanning.Store(true) }

// ResetScanning clears the stop flag ahead of a fresh scan.
func (q *Queue) ResetScanning() { q.stopScanning.Store(false) }

// RunTimers starts the single GCD-cadence timer thread that drives both
// commit windows until ctx is cancelled, per spec.md §4.C6.
func (q *Queue) RunTimers(ctx context.Context) {
	tick := gcd(q.cfg.VolatileCommitInterval, q.cfg.PersistentCommitInterval)
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var sinceVolatile, sincePersistent time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sinceVolatile += tick
			sincePersistent += tick

			// Flush whatever accumulated in the current batch before
			// evaluating either commit, so a commit window always sees
			// the latest writes.
			q.drainOnce()

			if sinceVolatile >= q.cfg.VolatileCommitInterval {
				sinceVolatile = 0
				if q.volatileDirty.Swap(false) {
					if err := q.idx.CommitVolatile(); err != nil {
						q.log.WithError(err).Warn("jobqueue: volatile commit failed")
					}
				}
			}
			if sincePersistent >= q.cfg.PersistentCommitInterval {
				sincePersistent = 0
				if q.persistentDirty.Swap(false) {
					if err := q.idx.CommitPersistent(); err != nil {
						q.log.WithError(err).Warn("jobqueue: persistent commit failed")
					}
				}
			}
		}
	}
}

// Drain forces an immediate flush of whatever is pending — used on
// shutdown, per spec.md §5: "drains the job queue one last time".
func (q *Queue) Drain() { q.drainOnce() }
