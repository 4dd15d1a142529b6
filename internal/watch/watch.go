// Package watch supplies the real, live filesystem signal that drives
// internal/kprobe on a stock kernel, standing in for the VFS probe layer
// spec.md §4.C1 describes. It recursively watches a set of root
// directories with fsnotify and translates each fsnotify.Event into the
// kprobe.Event shape, including rename-cookie pairing (fsnotify does not
// expose the inotify rename cookie, so this package assigns its own
// monotonic cookie to each Rename it observes and pairs it with the next
// Create of the same base name).
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/anyfind/anyfind/internal/kprobe"
)

// Watcher recursively watches a set of roots and submits translated
// events into a kprobe.Merger.
type Watcher struct {
	log    *logrus.Entry
	merger *kprobe.Merger
	fsw    *fsnotify.Watcher

	cookieSeq uint64

	mu           sync.Mutex
	pendingMoves map[string]uint32 // path -> cookie, awaiting the paired Create
	knownDirs    map[string]bool   // tracks directories so Remove can classify after the fact
}

// New creates a Watcher delivering translated events into merger.
func New(merger *kprobe.Merger, log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		log:          log,
		merger:       merger,
		fsw:          fsw,
		pendingMoves: make(map[string]uint32),
		knownDirs:    make(map[string]bool),
	}, nil
}

// AddRoot recursively registers watches under root. Matches spec.md
// §4.C1's intent to probe every VFS-modifying call under a traced
// subtree; unlike a kernel probe this must explicitly walk and watch
// every directory since inotify is not recursive.
func (w *Watcher) AddRoot(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Tolerate a single unreadable subtree rather than aborting
			// the whole scan, matching spec.md §4.C1's "tolerate ...
			// path lookup failure" probe contract.
			w.log.WithError(err).WithField("path", path).Warn("watch: skipping unreadable path")
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				w.log.WithError(err).WithField("path", path).Warn("watch: add failed")
			}
			w.mu.Lock()
			w.knownDirs[path] = true
			w.mu.Unlock()
		}
		return nil
	})
}

// Run pumps fsnotify events into the merger until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Transient resource / protocol errors at this layer are
			// logged and dropped, never fatal, per spec.md §7.
			w.log.WithError(err).Warn("watch: fsnotify error")
		}
	}
}

func (w *Watcher) Close() error { return w.fsw.Close() }

func (w *Watcher) handle(ev fsnotify.Event) {
	info, statErr := os.Lstat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	switch {
	case ev.Op&fsnotify.Create != 0:
		if isDir {
			_ = w.fsw.Add(ev.Name)
			w.mu.Lock()
			w.knownDirs[ev.Name] = true
			w.mu.Unlock()
		}
		if cookie, ok := w.takePendingMove(ev.Name); ok {
			// Pair with the Rename half seen moments earlier: same
			// basename leaving one watched directory and entering
			// another is the fsnotify analog of a kernel rename_from
			// immediately followed by rename_to with the same cookie.
			w.merger.Submit(kprobe.Event{Action: renameToAction(isDir), Cookie: cookie, Src: ev.Name})
			return
		}
		w.merger.Submit(kprobe.Event{Action: newAction(isDir), Src: ev.Name})

	case ev.Op&fsnotify.Remove != 0:
		w.mu.Lock()
		wasDir := w.knownDirs[ev.Name]
		delete(w.knownDirs, ev.Name)
		w.mu.Unlock()
		w.merger.Submit(kprobe.Event{Action: delAction(wasDir), Src: ev.Name})

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports the source side of a rename as a Rename op
		// on the old name; the destination arrives as a separate
		// Create. Stash a cookie so the paired Create resolves the
		// synthetic rename_to half.
		w.mu.Lock()
		wasDir := w.knownDirs[ev.Name]
		delete(w.knownDirs, ev.Name)
		w.mu.Unlock()
		cookie := uint32(atomic.AddUint64(&w.cookieSeq, 1))
		w.merger.Submit(kprobe.Event{Action: renameFromAction(wasDir), Cookie: cookie, Src: ev.Name})
		w.stashPendingMove(ev.Name, cookie)

	case ev.Op&fsnotify.Write != 0, ev.Op&fsnotify.Chmod != 0:
		// Content/metadata-only changes carry no path-identity change;
		// out of scope per spec.md §1 ("indexing file contents" and
		// metadata refresh are not part of the change-pipeline spec).
	}
}

func (w *Watcher) stashPendingMove(path string, cookie uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingMoves[filepath.Base(path)] = cookie
}

func (w *Watcher) takePendingMove(path string) (uint32, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	base := filepath.Base(path)
	cookie, ok := w.pendingMoves[base]
	if ok {
		delete(w.pendingMoves, base)
	}
	return cookie, ok
}

func newAction(isDir bool) kprobe.Action {
	if isDir {
		return kprobe.NewFolder
	}
	return kprobe.NewFile
}

func delAction(isDir bool) kprobe.Action {
	if isDir {
		return kprobe.DelFolder
	}
	return kprobe.DelFile
}

func renameFromAction(isDir bool) kprobe.Action {
	if isDir {
		return kprobe.RenameFromFolder
	}
	return kprobe.RenameFromFile
}

func renameToAction(isDir bool) kprobe.Action {
	if isDir {
		return kprobe.RenameToFolder
	}
	return kprobe.RenameToFile
}
