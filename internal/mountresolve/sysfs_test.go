package mountresolve

import "testing"

type fakeOverlayAttribute struct {
	minors map[uint8]bool
	writes []string
}

func newFakeOverlayAttribute(initial ...uint8) *fakeOverlayAttribute {
	f := &fakeOverlayAttribute{minors: make(map[uint8]bool)}
	for _, m := range initial {
		f.minors[m] = true
	}
	return f
}

func (f *fakeOverlayAttribute) Read() (string, error) {
	s := ""
	for m := range f.minors {
		if s != "" {
			s += ","
		}
		s += string(rune('0' + m))
	}
	return s, nil
}

func (f *fakeOverlayAttribute) Write(cmd string) error {
	f.writes = append(f.writes, cmd)
	switch cmd[0] {
	case 'a':
		f.minors[uint8(cmd[1]-'0')] = true
	case 'r':
		delete(f.minors, uint8(cmd[1]-'0'))
	case 'e':
		f.minors = make(map[uint8]bool)
	}
	return nil
}

func TestSyncOverlayAllowlistAddsAndRemoves(t *testing.T) {
	attr := newFakeOverlayAttribute(3, 4)
	if err := SyncOverlayAllowlist(attr, []uint8{4, 5}); err != nil {
		t.Fatalf("SyncOverlayAllowlist: %v", err)
	}
	if attr.minors[3] {
		t.Fatalf("expected minor 3 removed")
	}
	if !attr.minors[4] || !attr.minors[5] {
		t.Fatalf("expected minors 4 and 5 present, got %v", attr.minors)
	}
}
