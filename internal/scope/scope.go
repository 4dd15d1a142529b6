// Package scope implements the event filter & scoper from spec.md
// §4.C5: blacklist, indexing-scope and bind-mount rewrite rules, plus
// userspace-side rename pairing and the rename-across-scope truth table.
package scope

import (
	"strings"
	"sync"

	"github.com/anyfind/anyfind/internal/errs"
	"github.com/anyfind/anyfind/internal/kprobe"
)

// IndexingItem is the (origin_path, event_path, differs) tuple from
// spec.md §3: origin_path is what users search, event_path is where the
// kernel reports changes for that subtree when bind mounts differ.
type IndexingItem struct {
	OriginPath string
	EventPath  string
	Differs    bool
}

// JobType mirrors the index_job type enum from spec.md §3.
type JobType int

const (
	JobAdd JobType = iota
	JobRemove
	JobUpdate
	JobScan
)

// Decision is what the scoper decided to do with one filtered event,
// already rewritten from event-side to origin-side paths.
type Decision struct {
	Type JobType
	Src  string
	Dst  string // JobUpdate only
}

// longFilenameSentinelSuffix marks sentinel records emitted by the
// long-filename overlay, per spec.md §4.C5 step 1.
const longFilenameSentinelSuffix = ".longname"

// Scoper applies the spec.md §4.C5 filter chain and tracks the
// userspace-side rename pairing table independently of the kernel
// merger's own pairing.
type Scoper struct {
	mu        sync.RWMutex
	items     []IndexingItem
	blacklist []string

	isOverlayMount func(path string) bool

	pendingRename map[uint32]string // cookie -> origin-side src, userspace half
}

func New(isOverlayMount func(path string) bool) *Scoper {
	return &Scoper{
		isOverlayMount: isOverlayMount,
		pendingRename:  make(map[uint32]string),
	}
}

// SetConfig installs a new set of indexing items and blacklist
// substrings, replacing whatever was configured before. Overlapping
// event paths across items are a configuration conflict per spec.md §7:
// the later entry is logged by the caller (via the returned conflicts
// slice) and skipped here.
func (s *Scoper) SetConfig(items []IndexingItem, blacklist []string) (accepted []IndexingItem, conflicts []IndexingItem) {
	seen := make([]string, 0, len(items))
	for _, it := range items {
		overlaps := false
		for _, prev := range seen {
			if strings.HasPrefix(it.EventPath, prev) || strings.HasPrefix(prev, it.EventPath) {
				overlaps = true
				break
			}
		}
		if overlaps {
			conflicts = append(conflicts, it)
			continue
		}
		seen = append(seen, it.EventPath)
		accepted = append(accepted, it)
	}

	s.mu.Lock()
	s.items = accepted
	s.blacklist = blacklist
	s.mu.Unlock()
	return accepted, conflicts
}

func (s *Scoper) matchItem(eventPath string) (IndexingItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if strings.HasPrefix(eventPath, it.EventPath) {
			return it, true
		}
	}
	return IndexingItem{}, false
}

func (s *Scoper) blacklisted(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.blacklist {
		if strings.Contains(path, b) {
			return true
		}
	}
	return false
}

// inScope applies filter steps 1-4 from spec.md §4.C5 to a single
// event-side path, returning the rewritten origin-side path if it
// passes every filter.
func (s *Scoper) inScope(path string) (origin string, ok bool) {
	if strings.HasSuffix(path, longFilenameSentinelSuffix) {
		return "", false
	}
	if s.isOverlayMount != nil && s.isOverlayMount(path) {
		return "", false
	}
	item, matched := s.matchItem(path)
	if !matched {
		return "", false
	}
	if s.blacklisted(path) {
		return "", false
	}
	rewritten := item.OriginPath + strings.TrimPrefix(path, item.EventPath)
	return rewritten, true
}

// Filter applies the full filter chain (including userspace rename
// pairing) to a single event drained from the transport bus, returning
// zero or more job decisions — a directory renamed into scope, for
// instance, yields an add decision for the moved root and a scan
// decision for its descendants, while one renamed out of scope yields
// a single remove decision for its root.
func (s *Scoper) Filter(e kprobe.Event) []Decision {
	switch {
	case e.Action.IsRenameFrom():
		s.mu.Lock()
		s.pendingRename[e.Cookie] = e.Src
		s.mu.Unlock()
		return nil

	case e.Action.IsRenameTo():
		s.mu.Lock()
		src, ok := s.pendingRename[e.Cookie]
		delete(s.pendingRename, e.Cookie)
		s.mu.Unlock()
		if !ok {
			// Unmatched rename_to promoted to new_*, per spec.md §3.
			return s.filterNew(e.Src, e.Action == kprobe.RenameToFolder)
		}
		return s.filterRename(src, e.Src, e.Action == kprobe.RenameToFolder)

	case e.Action.IsRename():
		return s.filterRename(e.Src, e.Dst, false)

	case e.Action == kprobe.RenameFolder:
		return s.filterRename(e.Src, e.Dst, true)

	case e.Action.IsNew():
		return s.filterNew(e.Src, e.Action == kprobe.NewFolder)

	case e.Action == kprobe.NewFolder:
		return s.filterNew(e.Src, true)

	case e.Action.IsDel():
		return s.filterDel(e.Src)

	case e.Action == kprobe.DelFolder:
		return s.filterDel(e.Src)

	default:
		return nil
	}
}

func (s *Scoper) filterNew(path string, isDir bool) []Decision {
	origin, ok := s.inScope(path)
	if !ok {
		return nil
	}
	d := []Decision{{Type: JobAdd, Src: origin}}
	if isDir {
		d = append(d, Decision{Type: JobScan, Src: origin})
	}
	return d
}

func (s *Scoper) filterDel(path string) []Decision {
	origin, ok := s.inScope(path)
	if !ok {
		return nil
	}
	return []Decision{{Type: JobRemove, Src: origin}}
}

// filterRename applies the rename/scope truth table from spec.md §4.C5.
func (s *Scoper) filterRename(srcEvent, dstEvent string, isDir bool) []Decision {
	originSrc, srcIn := s.inScope(srcEvent)
	originDst, dstIn := s.inScope(dstEvent)

	switch {
	case srcIn && dstIn:
		return []Decision{{Type: JobUpdate, Src: originSrc, Dst: originDst}}
	case srcIn && !dstIn:
		return []Decision{{Type: JobRemove, Src: originSrc}}
	case !srcIn && dstIn:
		d := []Decision{{Type: JobAdd, Src: originDst}}
		if isDir {
			d = append(d, Decision{Type: JobScan, Src: originDst})
		}
		return d
	default:
		return nil
	}
}

// FlushAgedRenames discards userspace-side rename_from halves that never
// matched, at a batch boundary — mirrors kprobe.Merger.FlushAgedRenames
// but operates on the independent userspace pairing table spec.md
// §4.C5 describes.
func (s *Scoper) FlushAgedRenames() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRename = make(map[uint32]string)
}

// ConfigConflictError wraps errs.ErrConfigConflict with the offending
// item for logging at the component boundary.
type ConfigConflictError struct {
	Item IndexingItem
}

func (e *ConfigConflictError) Error() string {
	return "scope: " + e.Item.EventPath + ": " + errs.ErrConfigConflict.Error()
}

func (e *ConfigConflictError) Unwrap() error { return errs.ErrConfigConflict }
