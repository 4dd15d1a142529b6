// Package mountresolve maintains the device-id → mount-point map from
// spec.md §4.C4 and answers "which absolute path does this (device,
// device-relative path) tuple name".
package mountresolve

import (
	"strings"
	"sync"

	"github.com/moby/sys/mountinfo"

	"github.com/anyfind/anyfind/internal/errs"
	"github.com/anyfind/anyfind/internal/kprobe"
)

// Partition is one entry of the mount table: device id, mount point,
// source device, mount root, and filesystem type, per spec.md §3.
type Partition struct {
	Dev        kprobe.DeviceID
	MountPoint string
	Source     string
	MountRoot  string // "/" means the whole device is mounted
	FSType     string
}

// excludedFSTypes are the virtual/kernel-only filesystems spec.md
// §4.C1 says are rejected by a small fixed-name list.
var excludedFSTypes = map[string]bool{
	"proc":        true,
	"sysfs":       true,
	"tmpfs":       true,
	"devtmpfs":    true,
	"devpts":      true,
	"cgroup":      true,
	"cgroup2":     true,
	"debugfs":     true,
	"tracefs":     true,
	"securityfs":  true,
	"pstore":      true,
	"bpf":         true,
	"autofs":      true,
	"mqueue":      true,
	"hugetlbfs":   true,
	"overlay":     false, // overlay is a real, traceable filesystem (not excluded)
}

// longFilenameFSType is the overlay filesystem type spec.md §4.C4/§6
// calls the "long-filename overlay" — opted in per-device via a sysfs
// allowlist rather than excluded outright.
const longFilenameFSType = "anything_longname"

// Resolver holds the current mount table snapshot and the set of minor
// numbers opted in to the long-filename overlay handshake.
type Resolver struct {
	mu         sync.RWMutex
	byDev      map[kprobe.DeviceID]*Partition
	overlayMin map[uint8]bool
}

func New() *Resolver {
	return &Resolver{
		byDev:      make(map[kprobe.DeviceID]*Partition),
		overlayMin: make(map[uint8]bool),
	}
}

// Refresh re-parses the mount table snapshot, replacing the in-memory
// map wholesale — spec.md §4.C4 states there is no persistent state and
// entries are rebuilt on demand.
func (r *Resolver) Refresh() error {
	infos, err := mountinfo.GetMounts(nil)
	if err != nil {
		return err
	}

	next := make(map[kprobe.DeviceID]*Partition, len(infos))
	for _, mi := range infos {
		if !strings.HasPrefix(mi.Source, "/") {
			continue // source doesn't begin with "/": reject, per spec.md §4.C1
		}
		if excludedFSTypes[mi.FSType] {
			continue
		}
		major, minor := uint16(mi.Major), uint8(mi.Minor)
		dev := kprobe.MakeDeviceID(major, minor)
		next[dev] = &Partition{
			Dev:        dev,
			MountPoint: mi.Mountpoint,
			Source:     mi.Source,
			MountRoot:  mi.Root,
			FSType:     mi.FSType,
		}
	}

	r.mu.Lock()
	r.byDev = next
	r.mu.Unlock()
	return nil
}

// SetOverlayAllowlist rewrites the long-filename overlay opt-in set to
// exactly the given minor numbers, per spec.md §4.C4's handshake: the
// daemon rewrites this allowlist on every mount-table refresh.
func (r *Resolver) SetOverlayAllowlist(minors []uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlayMin = make(map[uint8]bool, len(minors))
	for _, m := range minors {
		r.overlayMin[m] = true
	}
}

// isNonReal reports whether dev is a "non-real" device (major==0) per
// spec.md §4.C4, and whether it is an opted-in long-filename overlay.
func (r *Resolver) isNonReal(dev kprobe.DeviceID) (nonReal, overlayOptIn bool) {
	nonReal = dev.Major() == 0
	if nonReal {
		overlayOptIn = r.overlayMin[dev.Minor()]
	}
	return
}

// Lookup returns the partition entry for dev, or ErrUnknownDevice if the
// device has never been seen in a mount table snapshot.
func (r *Resolver) Lookup(dev kprobe.DeviceID) (*Partition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byDev[dev]
	if !ok {
		return nil, errs.ErrUnknownDevice
	}
	return p, nil
}

// Resolve reconstructs the absolute path for an event carrying device id
// dev and device-relative source path rel, per spec.md §4.C4's
// path-to-absolute algorithm.
func (r *Resolver) Resolve(dev kprobe.DeviceID, rel string) (string, error) {
	p, err := r.Lookup(dev)
	if err != nil {
		return "", err
	}
	if p.MountPoint == "/" {
		return rel, nil
	}
	return strings.TrimRight(p.MountPoint, "/") + rel, nil
}

// FindMountPoint walks up path asking "is this a mount point?", applying
// the hardreal rule from spec.md §4.C4 step 2: a non-real device's mount
// point (other than an opted-in overlay) is skipped in favor of the next
// real mount point further up the tree.
func (r *Resolver) FindMountPoint(path string, hardreal bool) (*Partition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Build a reverse index by mount point for the walk-up scan; the
	// mount table is small (tens of entries), so rebuilding this map on
	// every call is cheap relative to the stat syscalls a real kernel
	// walk would need anyway. The root mount is keyed as "/".
	byPoint := make(map[string]*Partition, len(r.byDev))
	for _, p := range r.byDev {
		key := strings.TrimRight(p.MountPoint, "/")
		if key == "" {
			key = "/"
		}
		byPoint[key] = p
	}

	cur := strings.TrimRight(path, "/")
	for {
		if p, ok := byPoint[cur]; ok {
			if !hardreal {
				return p, nil
			}
			nonReal, overlayOptIn := r.isNonReal(p.Dev)
			if !nonReal || overlayOptIn {
				return p, nil
			}
			// keep walking up past this non-real, non-opted-in mount
		}
		if cur == "" || cur == "/" {
			break
		}
		idx := strings.LastIndex(cur, "/")
		if idx <= 0 {
			cur = "/"
		} else {
			cur = cur[:idx]
		}
	}
	if p, ok := byPoint["/"]; ok {
		return p, nil
	}
	return nil, errs.ErrUnknownDevice
}

// IsOverlayMount reports whether path resolves to a long-filename
// overlay mount, for internal/scope's filter-chain step 2. Any
// resolution failure is treated as "not an overlay" so a path the
// resolver hasn't seen yet doesn't get misclassified.
func (r *Resolver) IsOverlayMount(path string) bool {
	p, err := r.FindMountPoint(path, false)
	if err != nil {
		return false
	}
	return p.FSType == longFilenameFSType
}
