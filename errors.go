package xearthlayer

import (
	"errors"
	"fmt"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type ErrorKind -linecomment

// ErrorKind classifies an error for retry and FUSE-boundary mapping
// purposes. It is the durability taxonomy surfaced at every seam between
// the executor and its callers.
type ErrorKind uint

const (
	// KindUnspecified says nothing about durability; treated as Permanent
	// by callers that must pick a retry decision.
	KindUnspecified ErrorKind = iota // unspecified
	// KindTransient is retry-eligible: network reset, 5xx, timeout mid-transfer.
	KindTransient // transient
	// KindPermanent is never retried: invalid coordinates, unsupported zoom,
	// invalid config.
	KindPermanent // permanent
	// KindResource covers semaphore timeouts and executor saturation.
	KindResource // resource
	// KindCancelled marks a request cancelled before completion.
	KindCancelled // cancelled
	// KindCorrupt covers decoded image mismatches and failed checksums.
	KindCorrupt // corrupt
)

// Retryable reports whether the kind is ever eligible for a retry policy to
// re-attempt the task that produced it.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// Error wraps an inner error with a durability kind and the operation that
// produced it. It satisfies errors.Is/As/Unwrap via Unwrap and Is.
type Error struct {
	Op    string
	Kind  ErrorKind
	Inner error
}

// NewError builds an Error, the single seam every component funnels its
// failures through before they cross a component boundary.
func NewError(op string, kind ErrorKind, inner error) *Error {
	return &Error{Op: op, Kind: kind, Inner: inner}
}

func (e *Error) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Inner)
}

func (e *Error) Unwrap() error { return e.Inner }

// Is reports kind-equality against another *Error, so callers can write
// errors.Is(err, &xearthlayer.Error{Kind: xearthlayer.KindTransient}).
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// KindOf extracts the ErrorKind from err, defaulting to KindUnspecified if
// err does not wrap an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnspecified
}

// Sentinel errors for well-known permanent conditions.
var (
	ErrUnsupportedZoom   = errors.New("unsupported zoom")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrMissingInput      = errors.New("missing task input")
	ErrShuttingDown      = errors.New("cache shutting down")
)

// TimeoutError reports a per-tile generation deadline expiring partway
// through chunk download.
type TimeoutError struct {
	Downloaded int
	Total      int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after downloading %d/%d chunks", e.Downloaded, e.Total)
}
