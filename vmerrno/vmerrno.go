// Package vmerrno defines the Linux errno taxonomy that crosses the
// guest/host boundary. It follows the shape of rclone's fs/fserrors
// package: a small sentinel-comparable error type that can wrap an
// underlying host cause while still satisfying errors.Is/errors.As
// against one of the fixed Errno values below.
package vmerrno

import "fmt"

// Errno is a Linux error number exposed to guest syscalls.
type Errno int

// Linux error numbers this kernel core ever returns to a guest.
const (
	E_PERM    Errno = 1
	E_NOENT   Errno = 2
	E_IO      Errno = 5
	E_ACCES   Errno = 13
	E_FAULT   Errno = 14
	E_EXIST   Errno = 17
	E_XDEV    Errno = 18
	E_NOTDIR  Errno = 20
	E_ISDIR   Errno = 21
	E_INVAL   Errno = 22
	E_NOMEM   Errno = 12
	E_ROFS    Errno = 30
	E_NOTEMPTY Errno = 39
	E_LOOP    Errno = 40
	E_OPNOTSUPP Errno = 95

	// E_INVALID_ADDRESS has no POSIX errno equivalent; it marks a guest
	// virtual address that falls outside any reserved section, or inside
	// one on a page that is not soft-allocated.
	E_INVALID_ADDRESS Errno = -1
)

var names = map[Errno]string{
	E_PERM:             "operation not permitted",
	E_NOENT:            "no such file or directory",
	E_IO:               "input/output error",
	E_ACCES:            "permission denied",
	E_FAULT:            "bad address",
	E_EXIST:            "file exists",
	E_XDEV:             "invalid cross-device link",
	E_NOTDIR:           "not a directory",
	E_ISDIR:            "is a directory",
	E_INVAL:            "invalid argument",
	E_NOMEM:            "cannot allocate memory",
	E_ROFS:             "read-only file system",
	E_NOTEMPTY:         "directory not empty",
	E_LOOP:             "too many levels of symbolic links",
	E_OPNOTSUPP:        "operation not supported",
	E_INVALID_ADDRESS:  "invalid address",
}

func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

// wrapped pairs an Errno with the host-level cause that produced it, the
// way fserrors wraps a backend error while remaining comparable via
// errors.Is against the sentinel.
type wrapped struct {
	errno Errno
	cause error
}

func (w *wrapped) Error() string {
	if w.cause == nil {
		return w.errno.Error()
	}
	return fmt.Sprintf("%s: %v", w.errno.Error(), w.cause)
}

func (w *wrapped) Unwrap() error { return w.cause }

// Is lets errors.Is(err, vmerrno.E_NOENT) succeed against a wrapped error.
func (w *wrapped) Is(target error) bool {
	e, ok := target.(Errno)
	return ok && e == w.errno
}

// Wrap produces an error reporting errno that still exposes cause via
// errors.Unwrap, for internal logging without leaking host details across
// the guest syscall boundary (callers translate back to errno via As).
func Wrap(errno Errno, cause error) error {
	if cause == nil {
		return errno
	}
	return &wrapped{errno: errno, cause: cause}
}

// As extracts the Errno carried by err, whether bare or wrapped.
func As(err error) (Errno, bool) {
	switch v := err.(type) {
	case Errno:
		return v, true
	case *wrapped:
		return v.errno, true
	default:
		return 0, false
	}
}
