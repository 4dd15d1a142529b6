package scope

import (
	"testing"

	"github.com/anyfind/anyfind/internal/kprobe"
)

func TestRenameOutOfScopeEmitsRemove(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, nil)

	s.Filter(kprobe.Event{Action: kprobe.RenameFromFile, Cookie: 42, Src: "/home/u/x.txt"})
	decisions := s.Filter(kprobe.Event{Action: kprobe.RenameToFile, Cookie: 42, Src: "/tmp/x.txt"})

	if len(decisions) != 1 || decisions[0].Type != JobRemove || decisions[0].Src != "/home/u/x.txt" {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
}

func TestDirectoryRenameInsideScopeEmitsUpdate(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, nil)

	s.Filter(kprobe.Event{Action: kprobe.RenameFromFolder, Cookie: 7, Src: "/home/u/d"})
	decisions := s.Filter(kprobe.Event{Action: kprobe.RenameToFolder, Cookie: 7, Src: "/home/u/e"})

	if len(decisions) != 1 || decisions[0].Type != JobUpdate {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	if decisions[0].Src != "/home/u/d" || decisions[0].Dst != "/home/u/e" {
		t.Fatalf("unexpected update paths: %+v", decisions[0])
	}
}

func TestRenameIntoScopeScansDirectory(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, nil)

	s.Filter(kprobe.Event{Action: kprobe.RenameFromFolder, Cookie: 1, Src: "/tmp/d"})
	decisions := s.Filter(kprobe.Event{Action: kprobe.RenameToFolder, Cookie: 1, Src: "/home/u/d"})

	if len(decisions) != 2 {
		t.Fatalf("expected add+scan, got %+v", decisions)
	}
	if decisions[0].Type != JobAdd || decisions[1].Type != JobScan {
		t.Fatalf("unexpected decision order: %+v", decisions)
	}
}

func TestMkdirEmitsAddAndScan(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, nil)

	decisions := s.Filter(kprobe.Event{Action: kprobe.NewFolder, Src: "/home/u/newdir"})
	if len(decisions) != 2 {
		t.Fatalf("expected add+scan for a live mkdir, got %+v", decisions)
	}
	if decisions[0].Type != JobAdd || decisions[0].Src != "/home/u/newdir" {
		t.Fatalf("unexpected add decision: %+v", decisions[0])
	}
	if decisions[1].Type != JobScan || decisions[1].Src != "/home/u/newdir" {
		t.Fatalf("unexpected scan decision: %+v", decisions[1])
	}
}

func TestDirectRenameFolderEmitsUpdate(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, nil)

	decisions := s.Filter(kprobe.Event{Action: kprobe.RenameFolder, Src: "/home/u/d", Dst: "/home/u/e"})
	if len(decisions) != 1 || decisions[0].Type != JobUpdate {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	if decisions[0].Src != "/home/u/d" || decisions[0].Dst != "/home/u/e" {
		t.Fatalf("unexpected update paths: %+v", decisions[0])
	}
}

func TestBlacklistRejectsEvent(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, []string{"/.cache/"})

	decisions := s.Filter(kprobe.Event{Action: kprobe.NewFile, Src: "/home/u/.cache/x"})
	if len(decisions) != 0 {
		t.Fatalf("expected blacklisted event dropped, got %+v", decisions)
	}
}

func TestLongnameSentinelDropped(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u", EventPath: "/home/u"}}, nil)

	decisions := s.Filter(kprobe.Event{Action: kprobe.NewFile, Src: "/home/u/x.longname"})
	if len(decisions) != 0 {
		t.Fatalf("expected sentinel dropped, got %+v", decisions)
	}
}

func TestBindMountRewrite(t *testing.T) {
	s := New(nil)
	s.SetConfig([]IndexingItem{{OriginPath: "/home/u/", EventPath: "/persistent/home/u/", Differs: true}}, nil)

	decisions := s.Filter(kprobe.Event{Action: kprobe.NewFile, Src: "/persistent/home/u/doc.pdf"})
	if len(decisions) != 1 || decisions[0].Src != "/home/u/doc.pdf" {
		t.Fatalf("unexpected rewritten path: %+v", decisions)
	}
}

func TestOverlapingIndexingPathsConflict(t *testing.T) {
	s := New(nil)
	items := []IndexingItem{
		{OriginPath: "/home/u", EventPath: "/home/u"},
		{OriginPath: "/home/u/docs", EventPath: "/home/u/docs"},
	}
	accepted, conflicts := s.SetConfig(items, nil)
	if len(accepted) != 1 || len(conflicts) != 1 {
		t.Fatalf("expected one accepted, one conflict; got accepted=%v conflicts=%v", accepted, conflicts)
	}
}
