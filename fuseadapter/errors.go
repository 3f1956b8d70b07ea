// Package fuseadapter is the FUSE boundary of §4.I: a Backend interface a
// kernel-facing FUSE library would call into, the terrain filename grammar,
// and errno mapping from the executor's durability taxonomy. No FUSE kernel
// binding is implemented here — wiring this Backend to a real mount is out
// of scope.
package fuseadapter

import (
	"fmt"

	"golang.org/x/sys/unix"

	xearthlayer "github.com/xearthlayer/xearthlayer"
)

// Error is a FUSE-boundary error carrying both the originating op and the
// errno a kernel-facing binding would return. Grounded on
// ehrlich-b-go-ublk's Error/mapErrnoToCode shape, the nearest
// kernel-boundary error idiom in the pack.
type Error struct {
	Op    string
	Kind  xearthlayer.ErrorKind
	Inner error

	// errno overrides the Kind-derived errno when set; used for malformed
	// paths (ENOENT), which aren't a durability concern.
	errno unix.Errno
}

func (e *Error) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("fuseadapter: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("fuseadapter: %s: %v: %v", e.Op, e.Kind, e.Inner)
}

func (e *Error) Unwrap() error { return e.Inner }

// Errno maps the error's durability Kind to the errno a FUSE binding should
// surface to the kernel: Cancelled -> EINTR, Resource -> EAGAIN, everything
// else (including Permanent) -> EIO, unless an explicit override (such as
// NotFound's ENOENT) is set.
func (e *Error) Errno() unix.Errno {
	if e.errno != 0 {
		return e.errno
	}
	switch e.Kind {
	case xearthlayer.KindCancelled:
		return unix.EINTR
	case xearthlayer.KindResource:
		return unix.EAGAIN
	default:
		return unix.EIO
	}
}

// WrapError builds an *Error from inner, extracting its ErrorKind via
// xearthlayer.KindOf if inner already carries one.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Kind: xearthlayer.KindOf(inner), Inner: inner}
}

// NotFound builds an ENOENT error for a malformed or unrecognized path.
func NotFound(op string) *Error {
	return &Error{Op: op, Kind: xearthlayer.KindPermanent, Inner: errNotFound, errno: unix.ENOENT}
}

var errNotFound = fmt.Errorf("not found")
