package kprobe

import (
	"context"
	"testing"
	"time"
)

func TestMergerCreateThenDeleteCoalesces(t *testing.T) {
	m := NewMerger(16 << 20)
	m.Submit(Event{Action: NewFile, Dev: MakeDeviceID(8, 1), Src: "/a/b.txt"})
	m.Submit(Event{Action: DelFile, Dev: MakeDeviceID(8, 1), Src: "/a/b.txt"})

	got := m.Drain(10)
	if len(got) != 0 {
		t.Fatalf("expected coalesced create+delete to vanish, got %v", got)
	}
	stats := m.Stats()
	if stats.CurrentPending != 0 {
		t.Fatalf("expected 0 pending, got %d", stats.CurrentPending)
	}
}

func TestMergerRenameAcrossScopeSynthesizesSinglePair(t *testing.T) {
	m := NewMerger(16 << 20)
	m.Submit(Event{Action: RenameFromFile, Cookie: 42, Dev: MakeDeviceID(8, 1), Src: "/home/u/x.txt"})
	m.Submit(Event{Action: RenameToFile, Cookie: 42, Dev: MakeDeviceID(8, 1), Src: "/tmp/x.txt"})

	got := m.Drain(10)
	if len(got) != 1 {
		t.Fatalf("expected exactly one synthesised rename event, got %d: %v", len(got), got)
	}
	e := got[0]
	if e.Action != RenameFile || e.Src != "/home/u/x.txt" || e.Dst != "/tmp/x.txt" {
		t.Fatalf("unexpected synthesised event: %+v", e)
	}
}

func TestMergerUnmatchedRenameToPromotesToNew(t *testing.T) {
	m := NewMerger(16 << 20)
	m.Submit(Event{Action: RenameToFile, Cookie: 99, Dev: MakeDeviceID(8, 1), Src: "/a/new.txt"})

	got := m.Drain(10)
	if len(got) != 1 || got[0].Action != NewFile || got[0].Src != "/a/new.txt" {
		t.Fatalf("expected promoted new_file, got %v", got)
	}
}

func TestMergerUnmatchedRenameFromAgesOutOnFlush(t *testing.T) {
	m := NewMerger(16 << 20)
	m.Submit(Event{Action: RenameFromFile, Cookie: 7, Src: "/a/gone.txt"})
	m.FlushAgedRenames()
	// A rename_to with the same cookie arriving after the flush must be
	// treated as brand new, not paired with the aged-out half.
	m.Submit(Event{Action: RenameToFile, Cookie: 7, Src: "/a/elsewhere.txt"})

	got := m.Drain(10)
	if len(got) != 1 || got[0].Action != NewFile {
		t.Fatalf("expected promoted new after aged-out rename_from, got %v", got)
	}
}

func TestMergerMemoryBoundDiscardsOldest(t *testing.T) {
	const eventSize = 4000 + 16
	limit := 16 << 20
	m := NewMerger(limit)

	for i := 0; i < 10000; i++ {
		path := make([]byte, 4000)
		for j := range path {
			path[j] = 'a'
		}
		m.Submit(Event{Action: NewLink, Src: string(path) + string(rune('A'+i%26))})
	}

	stats := m.Stats()
	if stats.CurrentMemory > uint64(limit) {
		t.Fatalf("memory bound exceeded: %d > %d", stats.CurrentMemory, limit)
	}
	if stats.Discarded == 0 {
		t.Fatalf("expected discards when flooding a bounded merger")
	}
	maxEntries := uint64(limit/eventSize) + 1
	if stats.CurrentPending > maxEntries {
		t.Fatalf("pending %d exceeds bound/avg-size estimate %d", stats.CurrentPending, maxEntries)
	}
}

func TestMergerWaitRejectsZeroZero(t *testing.T) {
	m := NewMerger(16 << 20)
	err := m.Wait(context.Background(), 0, 0, time.Second)
	if err == nil {
		t.Fatalf("expected error for count=0, first-timeout=0")
	}
}

func TestMergerWaitReturnsOnCount(t *testing.T) {
	m := NewMerger(16 << 20)
	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Submit(Event{Action: NewFile, Src: "/x"})
	}()
	err := m.Wait(context.Background(), 1, 0, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMergerWaitHardTimeout(t *testing.T) {
	m := NewMerger(16 << 20)
	err := m.Wait(context.Background(), 5, 0, 20*time.Millisecond)
	if err != ErrHardTimeout {
		t.Fatalf("expected hard timeout error, got %v", err)
	}
}

func TestMergerFolderRenamesNeverCollapse(t *testing.T) {
	m := NewMerger(16 << 20)
	m.Submit(Event{Action: RenameFolder, Src: "/a", Dst: "/b"})
	m.Submit(Event{Action: RenameFolder, Src: "/b", Dst: "/c"})

	got := m.Drain(10)
	if len(got) != 2 {
		t.Fatalf("expected folder renames to be appended raw, never collapsed, got %d: %v", len(got), got)
	}
	if got[0].Action != RenameFolder || got[0].Src != "/a" || got[0].Dst != "/b" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[1].Action != RenameFolder || got[1].Src != "/b" || got[1].Dst != "/c" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
}

func TestMergerNewThenDeleteCancelsBoth(t *testing.T) {
	m := NewMerger(16 << 20)
	m.Submit(Event{Action: NewFile, Src: "/a"})
	m.Submit(Event{Action: DelFile, Src: "/a"})
	if got := m.Drain(10); len(got) != 0 {
		t.Fatalf("expected cancellation, got %v", got)
	}
}

func TestMergerDrainPartialLeavesConsistentSuffix(t *testing.T) {
	m := NewMerger(16 << 20)
	for i := 0; i < 5; i++ {
		m.Submit(Event{Action: NewLink, Src: string(rune('a' + i))})
	}
	first := m.Drain(2)
	if len(first) != 2 {
		t.Fatalf("expected 2 events, got %d", len(first))
	}
	rest := m.Drain(10)
	if len(rest) != 3 {
		t.Fatalf("expected 3 remaining events, got %d", len(rest))
	}
	if first[0].Src != "a" || first[1].Src != "b" {
		t.Fatalf("unexpected drain order: %v", first)
	}
	if rest[0].Src != "c" {
		t.Fatalf("unexpected remaining order: %v", rest)
	}
}
