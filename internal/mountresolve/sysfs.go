package mountresolve

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OverlayAttribute models the kernel sysfs attribute
// "vfs_unnamed_devices" from spec.md §6: reading it returns the
// comma-separated minor numbers currently opted in; writing accepts a
// one-character command (a<N> add, r<N> remove, e<N> clear) followed by
// a minor number.
type OverlayAttribute interface {
	Read() (string, error)
	Write(cmd string) error
}

// FileOverlayAttribute is the real implementation, backed by the sysfs
// file a kernel module would expose.
type FileOverlayAttribute struct {
	Path string
}

func (f *FileOverlayAttribute) Read() (string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (f *FileOverlayAttribute) Write(cmd string) error {
	return os.WriteFile(f.Path, []byte(cmd), 0o644)
}

// SyncOverlayAllowlist rewrites attr to match exactly the given minor
// numbers: it reads the current set, removes anything not in minors,
// and adds anything missing. This is the "daemon rewrites this
// allowlist on each mount-table refresh" behavior from spec.md §4.C4.
func SyncOverlayAllowlist(attr OverlayAttribute, minors []uint8) error {
	current, err := attr.Read()
	if err != nil {
		return err
	}

	want := make(map[uint8]bool, len(minors))
	for _, m := range minors {
		want[m] = true
	}

	have := make(map[uint8]bool)
	if current != "" {
		for _, tok := range strings.Split(current, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 8)
			if err != nil {
				continue
			}
			have[uint8(n)] = true
		}
	}

	for m := range have {
		if !want[m] {
			if err := attr.Write(fmt.Sprintf("r%d", m)); err != nil {
				return err
			}
		}
	}
	for m := range want {
		if !have[m] {
			if err := attr.Write(fmt.Sprintf("a%d", m)); err != nil {
				return err
			}
		}
	}
	return nil
}
