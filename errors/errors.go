// Package errors defines the error kinds the blockfs engine distinguishes,
// and a small wrapper type for attaching context to them without losing the
// underlying kind.
package errors

import "fmt"

// Kind is a sentinel error identifying one of the failure modes spec.md §7
// requires the engine to distinguish. Kind values compare equal with ==, so
// callers can switch on them directly.
type Kind string

const (
	ErrIO            = Kind("storage read/write failed")
	ErrCodec         = Kind("could not decode on-disk structure")
	ErrNoFreeInode   = Kind("no free inode slot")
	ErrNoFreeBlock   = Kind("no free data block")
	ErrFileTooBig    = Kind("payload exceeds the direct-pointer capacity")
	ErrAlreadyExists = Kind("name already exists in directory")
	ErrNotFound      = Kind("no such file or directory")
	ErrNotADirectory = Kind("not a directory")
	ErrAtRoot        = Kind("already at root")
	ErrIllegalName   = Kind("name may not contain '/'")
	ErrOutOfBounds   = Kind("index out of range of bitmap")
)

func (k Kind) Error() string {
	return string(k)
}

// Kind returns k itself, so a bare Kind value (returned directly as an
// error, with no extra context) still satisfies BlockfsError.
func (k Kind) Kind() Kind {
	return k
}

// WithMessage attaches additional context to k, without losing k as the
// underlying error for errors.Is/errors.As style comparisons.
func (k Kind) WithMessage(message string) BlockfsError {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", k.Error(), message),
		kind:    k,
	}
}

// Wrap records err as the cause of a k-kind failure.
func (k Kind) Wrap(err error) BlockfsError {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", k.Error(), err.Error()),
		kind:    k,
		cause:   err,
	}
}

// BlockfsError is the error interface every engine-level failure implements.
// It always carries the sentinel Kind that caused it, for callers (the shell
// layer in particular) that need to render different text per kind.
type BlockfsError interface {
	error
	Kind() Kind
}

type wrappedError struct {
	message string
	kind    Kind
	cause   error
}

func (e wrappedError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.kind.Error()
}

func (e wrappedError) Kind() Kind {
	return e.kind
}

func (e wrappedError) Unwrap() error {
	return e.cause
}

// Is reports whether target is the error's Kind, so errors.Is(err, kind)
// holds for errors built by WithMessage and Wrap.
func (e wrappedError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.kind
}
