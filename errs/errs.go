// Package errs defines the error taxonomy shared by every layer of
// xbps-go: resolver, pkgdb, crypto, unpack, and the commit orchestrator
// all return errors built from the sentinels below so callers can branch
// on kind with errors.Is, regardless of which package raised the error.
package errs

import (
	"errors"
	"fmt"
	"syscall"
)

// Sentinel kinds, one per errno the spec ties to a given failure class.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrIntegrity = errors.New("integrity check failed")
	ErrResource  = errors.New("resource exhausted")
	ErrConfig    = errors.New("configuration error")
	ErrBusy      = errors.New("busy")
	ErrCycle     = errors.New("dependency recursion too deep")
)

// wrapped pairs a taxonomy sentinel with the concrete errno the spec
// names for it, so that both errors.Is(err, errs.ErrConflict) and
// errors.Is(err, syscall.EEXIST) succeed.
type wrapped struct {
	kind  error
	errno syscall.Errno
	msg   string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.kind }
func (w *wrapped) Is(target error) bool {
	if eno, ok := target.(syscall.Errno); ok {
		return eno == w.errno
	}
	return false
}

func newErr(kind error, errno syscall.Errno, format string, args ...interface{}) error {
	return &wrapped{kind: kind, errno: errno, msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound carrying no specific errno (the spec
// leaves "not found" unqualified at the POSIX layer).
func NotFound(format string, args ...interface{}) error {
	return newErr(ErrNotFound, 0, format, args...)
}

// FileConflict is EEXIST: two packages install the same path.
func FileConflict(format string, args ...interface{}) error {
	return newErr(ErrConflict, syscall.EEXIST, format, args...)
}

// PackageBusy is EAGAIN: a resolved package action could not be staged
// because something else already occupies the slot (e.g. repo key not
// yet imported).
func PackageBusy(format string, args ...interface{}) error {
	return newErr(ErrConflict, syscall.EAGAIN, format, args...)
}

// Integrity is ERANGE/EPERM: hash or signature mismatch.
func Integrity(errno syscall.Errno, format string, args ...interface{}) error {
	return newErr(ErrIntegrity, errno, format, args...)
}

// NoSpace is ENOSPC.
func NoSpace(format string, args ...interface{}) error {
	return newErr(ErrResource, syscall.ENOSPC, format, args...)
}

// NoDevice is ENODEV: used for missing required archive members and for
// an unresolved dependency graph at prepare() time.
func NoDevice(format string, args ...interface{}) error {
	return newErr(ErrResource, syscall.ENODEV, format, args...)
}

// NoBufferSpace is ENOBUFS: a caller-provided path buffer overflowed.
func NoBufferSpace(format string, args ...interface{}) error {
	return newErr(ErrResource, syscall.ENOBUFS, format, args...)
}

// Unsupported is ENOTSUP: unrecognized signature algorithm or format.
func Unsupported(format string, args ...interface{}) error {
	return newErr(ErrConfig, syscall.ENOTSUP, format, args...)
}

// Invalid is EINVAL: malformed input that isn't a support gap.
func Invalid(format string, args ...interface{}) error {
	return newErr(ErrConfig, syscall.EINVAL, format, args...)
}

// Busy is EBUSY: pkgdb lock held by another writer, or a self-update is
// required before sysup can proceed.
func Busy(format string, args ...interface{}) error {
	return newErr(ErrBusy, syscall.EBUSY, format, args...)
}

// Cycle is ELOOP: dependency recursion exceeded the configured depth.
func Cycle(format string, args ...interface{}) error {
	return newErr(ErrCycle, syscall.ELOOP, format, args...)
}

// Collector aggregates errors from a pass that must keep going after a
// failure and report everything it found at the end (missing_deps,
// conflicts, missing_shlibs all accumulate this way per spec §4.7).
// Adapted from the teacher's errorCollector (holo-build/errorcollector.go),
// generalized from a package-build helper into a shared utility.
type Collector struct {
	Errors []error
}

// Add appends err if non-nil; a nil err is a no-op so call sites can
// write ec.Add(mightFail()) unconditionally.
func (c *Collector) Add(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

// Addf appends a formatted error.
func (c *Collector) Addf(format string, args ...interface{}) {
	c.Errors = append(c.Errors, fmt.Errorf(format, args...))
}

// Err returns nil if nothing was collected, the sole error if exactly
// one was collected, or a combined error otherwise.
func (c *Collector) Err() error {
	switch len(c.Errors) {
	case 0:
		return nil
	case 1:
		return c.Errors[0]
	default:
		return errors.Join(c.Errors...)
	}
}

// Empty reports whether nothing has been collected.
func (c *Collector) Empty() bool { return len(c.Errors) == 0 }
