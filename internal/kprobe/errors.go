package kprobe

import "errors"

var (
	errInvalidWait = errors.New("kprobe: count=0 and first-event timeout=0 is not a valid wait condition")
	errHardTimeout = errors.New("kprobe: wait-data hard timeout elapsed")
)

// ErrHardTimeout is returned by Wait when the hard total timeout elapses
// without the count or first-event condition being satisfied, matching
// the "distinguished error" spec.md §5 describes for the kernel
// wait-for-data call.
var ErrHardTimeout = errHardTimeout
