package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anyfind/anyfind/internal/config"
	"github.com/anyfind/anyfind/internal/dbusapi"
	"github.com/anyfind/anyfind/internal/jobqueue"
	"github.com/anyfind/anyfind/internal/kprobe"
	"github.com/anyfind/anyfind/internal/logging"
	"github.com/anyfind/anyfind/internal/metrics"
	"github.com/anyfind/anyfind/internal/mountresolve"
	"github.com/anyfind/anyfind/internal/scope"
	"github.com/anyfind/anyfind/internal/searchindex"
	"github.com/anyfind/anyfind/internal/watch"
)

// mergerMemoryBound caps the kernel event merger's pending memory
// footprint, per spec.md §4.C2. Not a recognised config key (spec.md
// §6 only lists the commit timeouts and suffix lists as tunables), so
// it is a fixed constant here.
const mergerMemoryBound = 64 << 20 // 64 MiB

// drainBatchSize is how many events the event-filter loop pulls from
// the merger per wake-up.
const drainBatchSize = 256

func init() {
	Root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	})
}

func runDaemon(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("anyfind: load config: %w", err)
	}
	cfg.ApplyOverrides(metricsAddrFlag, logLevelFlag)

	root := logging.New(cfg.LogLevel)
	log := logging.Component(root, "anyfindd")

	m, reg := metrics.New()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("anyfindd: shutdown signal received")
		cancel()
	}()

	resolver := mountresolve.New()
	if err := resolver.Refresh(); err != nil {
		log.WithError(err).Warn("anyfindd: initial mount table refresh failed")
	}

	scoper := scope.New(resolver.IsOverlayMount)
	items := buildIndexingItems(cfg, resolver)
	accepted, conflicts := scoper.SetConfig(items, cfg.BlacklistPaths)
	for _, c := range conflicts {
		log.WithField("origin", c.OriginPath).Warn("anyfindd: overlapping indexing path skipped")
	}

	lifecycle, err := searchindex.Open(searchindex.Config{
		VolatileDir:   cfg.VolatileDir,
		PersistentDir: cfg.PersistentDir,
		Buckets:       searchindex.ParseBucketSuffixes(cfg.BucketSuffixes),
		Log:           logging.Component(root, "searchindex"),
	})
	if err != nil {
		return fmt.Errorf("anyfind: open index: %w", err)
	}

	merger := kprobe.NewMerger(mergerMemoryBound)
	watcher, err := watch.New(merger, logging.Component(root, "watch"))
	if err != nil {
		return fmt.Errorf("anyfind: create watcher: %w", err)
	}

	jq := jobqueue.New(jobqueue.Config{
		BatchSize:                cfg.BatchSize,
		VolatileCommitInterval:   cfg.CommitVolatileIndexTimeout,
		PersistentCommitInterval: cfg.CommitPersistentIndexTimeout,
		Workers:                  cfg.Workers,
		ScanRateLimit:            cfg.ScanRateLimit,
	}, lifecycle, logging.Component(root, "jobqueue"))

	if err := lifecycle.BeginScanning(); err != nil {
		log.WithError(err).Warn("anyfindd: failed to record scanning status")
	}
	for _, item := range accepted {
		if err := watcher.AddRoot(item.EventPath); err != nil {
			log.WithError(err).WithField("path", item.EventPath).Warn("anyfindd: failed to watch indexing path")
			continue
		}
		jq.Enqueue(jobqueue.Job{Type: jobqueue.JobScan, Src: item.EventPath})
	}
	jq.Drain()
	if err := lifecycle.BeginMonitoring(); err != nil {
		log.WithError(err).Warn("anyfindd: failed to record monitoring status")
	}

	svc := dbusapi.NewService(lifecycle, reindexer{jq}, func() string { return string(lifecycle.Status()) }, logging.Component(root, "dbusapi"))
	busConn, err := dbus.ConnectSessionBus()
	if err != nil {
		log.WithError(err).Warn("anyfindd: session bus unavailable, search/status/reindex CLI commands will not work")
	} else {
		defer busConn.Close()
		if err := dbusapi.Export(busConn, svc); err != nil {
			return fmt.Errorf("anyfind: export dbus service: %w", err)
		}
	}

	var wg waitGroup
	wg.Go(func() { watcher.Run(ctx) })
	wg.Go(func() { runEventLoop(ctx, merger, scoper, jq, m, logging.Component(root, "eventloop")) })
	wg.Go(func() { jq.RunTimers(ctx) })
	wg.Go(func() {
		if serr := metrics.Serve(ctx, cfg.MetricsAddr, reg); serr != nil {
			log.WithError(serr).Warn("anyfindd: metrics server exited")
		}
	})

	<-ctx.Done()
	wg.Wait()

	jq.Drain()
	if err := lifecycle.Shutdown(); err != nil {
		log.WithError(err).Error("anyfindd: shutdown commit failed")
	}
	return watcher.Close()
}

// runEventLoop is the "event filter" concurrency domain from spec.md
// §5: it blocks on the merger's three-way wait, drains whatever
// accumulated, and pushes every filtered decision into the job queue.
func runEventLoop(ctx context.Context, merger *kprobe.Merger, scoper *scope.Scoper, jq *jobqueue.Queue, m *metrics.Metrics, log *logrus.Entry) {
	for {
		err := merger.Wait(ctx, 1, 50*time.Millisecond, time.Second)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, kprobe.ErrHardTimeout) {
			log.WithError(err).Warn("eventloop: wait failed")
		}

		merger.FlushAgedRenames()
		scoper.FlushAgedRenames()

		for _, e := range merger.Drain(drainBatchSize) {
			m.EventsReceived.Inc()
			for _, d := range scoper.Filter(e) {
				jq.Enqueue(toJob(d))
			}
		}
	}
}

func toJob(d scope.Decision) jobqueue.Job {
	var t jobqueue.JobType
	switch d.Type {
	case scope.JobAdd:
		t = jobqueue.JobAdd
	case scope.JobRemove:
		t = jobqueue.JobRemove
	case scope.JobUpdate:
		t = jobqueue.JobUpdate
	case scope.JobScan:
		t = jobqueue.JobScan
	}
	return jobqueue.Job{Type: t, Src: d.Src, Dst: d.Dst}
}

// buildIndexingItems resolves each configured indexing path's
// bind-mount event path via mountresolve, per spec.md §3's
// indexing-item tuple.
func buildIndexingItems(cfg *config.Config, resolver *mountresolve.Resolver) []scope.IndexingItem {
	items := make([]scope.IndexingItem, 0, len(cfg.IndexingPaths))
	for _, origin := range cfg.IndexingPaths {
		eventPath := origin
		differs := false

		if p, err := resolver.FindMountPoint(origin, true); err == nil && p.MountRoot != "/" {
			rel := strings.TrimPrefix(origin, p.MountPoint)
			if resolved, rerr := resolver.Resolve(p.Dev, rel); rerr == nil && resolved != origin {
				eventPath = resolved
				differs = true
			}
		}
		items = append(items, scope.IndexingItem{OriginPath: origin, EventPath: eventPath, Differs: differs})
	}
	return items
}

// reindexer adapts jobqueue.Queue to dbusapi.Reindexer: a reindex
// request is just a forced rescan job.
type reindexer struct{ jq *jobqueue.Queue }

func (r reindexer) Reindex(path string) error {
	r.jq.Enqueue(jobqueue.Job{Type: jobqueue.JobScan, Src: path})
	return nil
}

// waitGroup is a tiny sync.WaitGroup wrapper so the goroutine-group
// launch above reads as a list rather than four repeated
// wg.Add(1)/go func(){defer wg.Done(); ...}() blocks.
type waitGroup struct {
	wg sync.WaitGroup
}

func (w *waitGroup) Go(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

func (w *waitGroup) Wait() { w.wg.Wait() }
