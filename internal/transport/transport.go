// Package transport implements the kernel→user wire format from spec.md
// §6 and §4.C3: a typed message carrying one filesystem event, multicast
// from the merger to a single userspace consumer.
//
// The message layout mirrors a generic-netlink attribute payload (the
// pack's DataDog-datadog-agent dependency on github.com/mdlayher/netlink
// and github.com/vishvananda/netlink is the grounding for this choice)
// so that Bus, the in-process stand-in used here, can later be swapped
// for a real netlink socket without touching the codec.
package transport

import (
	"fmt"

	"github.com/mdlayher/netlink"

	"github.com/anyfind/anyfind/internal/errs"
	"github.com/anyfind/anyfind/internal/kprobe"
)

// maxPathLen is the wire limit from spec.md §6 ("path ≤ 4096 bytes").
const maxPathLen = 4096

// Netlink attribute type identifiers for the encoded event payload.
const (
	attrAction = 1
	attrCookie = 2
	attrMajor  = 3
	attrMinor  = 4
	attrSrc    = 5
	attrDst    = 6
)

// Encode serialises e into a generic-netlink attribute list matching the
// wire format in spec.md §6. Returns errs.ErrPathTooLong if either path
// exceeds the wire limit.
func Encode(e kprobe.Event) ([]byte, error) {
	if len(e.Src) > maxPathLen || len(e.Dst) > maxPathLen {
		return nil, fmt.Errorf("transport: %w", errs.ErrPathTooLong)
	}

	ae := netlink.NewAttributeEncoder()
	ae.Uint8(attrAction, uint8(e.Action))
	ae.Uint32(attrCookie, e.Cookie)
	ae.Uint16(attrMajor, e.Dev.Major())
	ae.Uint8(attrMinor, e.Dev.Minor())
	ae.String(attrSrc, e.Src)
	if e.Dst != "" {
		ae.String(attrDst, e.Dst)
	}
	return ae.Encode()
}

// Decode parses a message produced by Encode back into a kprobe.Event.
func Decode(b []byte) (kprobe.Event, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return kprobe.Event{}, err
	}

	var e kprobe.Event
	var major uint16
	var minor uint8
	for ad.Next() {
		switch ad.Type() {
		case attrAction:
			e.Action = kprobe.Action(ad.Uint8())
		case attrCookie:
			e.Cookie = ad.Uint32()
		case attrMajor:
			major = ad.Uint16()
		case attrMinor:
			minor = ad.Uint8()
		case attrSrc:
			e.Src = ad.String()
		case attrDst:
			e.Dst = ad.String()
		}
	}
	if err := ad.Err(); err != nil {
		return kprobe.Event{}, err
	}
	e.Dev = kprobe.MakeDeviceID(major, minor)
	return e, nil
}
