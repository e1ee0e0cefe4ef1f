package scan

import (
	"fmt"

	"github.com/var77/memscan/pkg/memory"
	"golang.org/x/xerrors"
)

// Kind classifies an engine-level failure. Names are the abstract ones
// from the engine's error taxonomy; Memory wraps a *memory.Error verbatim.
type Kind int

const (
	// EmptyValue: a scan operation was attempted with an empty pattern.
	EmptyValue Kind = iota
	// InvalidValue: a pattern string does not parse under the current type.
	InvalidValue
	// InvalidAddress: a start/end address hex string does not parse.
	InvalidAddress
	// AddressMismatch: start > end.
	AddressMismatch
	// ReadSizeInvalid: read_size fell outside [Min,Max].
	ReadSizeInvalid
	// TypeMismatch: existing bytes can't be rendered under the new type.
	TypeMismatch
	// Memory wraps a *memory.Error (NoPermission, ProcessAttach,
	// MemRead, MemWrite).
	Memory
)

// Error is the error type every Scan operation returns. It carries an
// xerrors.Frame so formatting it with %+v prints a call-site trace
// alongside the message.
type Error struct {
	Kind Kind
	Min  int // only meaningful for ReadSizeInvalid
	Max  int // only meaningful for ReadSizeInvalid
	Err  error
	frame xerrors.Frame
}

func newError(kind Kind) *Error {
	return &Error{Kind: kind, frame: xerrors.Caller(1)}
}

func newReadSizeError(min, max int) *Error {
	return &Error{Kind: ReadSizeInvalid, Min: min, Max: max, frame: xerrors.Caller(1)}
}

func newMemoryError(err error) *Error {
	return &Error{Kind: Memory, Err: err, frame: xerrors.Caller(1)}
}

// FormatError implements xerrors.Formatter so fmt's %+v prints a stack
// frame after the message.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Print(e.message())
	e.frame.Format(p)
	return nil
}

func (e *Error) Format(f fmt.State, c rune) { xerrors.FormatError(e, f, c) }

func (e *Error) Error() string { return e.message() }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) message() string {
	switch e.Kind {
	case EmptyValue:
		return "value is required to be set before scan"
	case InvalidValue:
		return "invalid scan value provided"
	case InvalidAddress:
		return "invalid address hex"
	case AddressMismatch:
		return "start address should be smaller than end address"
	case ReadSizeInvalid:
		return fmt.Sprintf("read size should be in range %d-%d", e.Min, e.Max)
	case TypeMismatch:
		return "invalid type for value"
	case Memory:
		return e.Err.Error()
	default:
		return "scan error"
	}
}

// MemoryKind returns the underlying memory.ErrorKind when this Error wraps
// a *memory.Error, and false otherwise. Callers use this to tell a fatal
// ProcessAttach apart from any other Memory failure without a type switch.
func (e *Error) MemoryKind() (memory.ErrorKind, bool) {
	var memErr *memory.Error
	if xerrors.As(e.Err, &memErr) {
		return memErr.Kind, true
	}
	return 0, false
}

// IsProcessAttach reports whether err is a *Error wrapping a
// memory.ProcessAttach failure: the one Memory failure that is fatal to
// an in-progress scan rather than being swallowed per-block.
func IsProcessAttach(err error) bool {
	var scanErr *Error
	if !xerrors.As(err, &scanErr) {
		return false
	}
	kind, ok := scanErr.MemoryKind()
	return ok && kind == memory.ProcessAttach
}
