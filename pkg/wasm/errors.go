package wasm

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match them with [errors.Is]; the concrete *FormatError and
// *EntryDecodeError values carry the offset of the failure.
var (
	// ErrFormat means the buffer is not a WebAssembly binary, or its section framing is broken.
	ErrFormat = errors.New("invalid wasm container")
	// ErrEntryDecode means an import or export entry could not be decoded.
	ErrEntryDecode = errors.New("invalid symbol table entry")
)

// Low-level decoding failures reported as the cause of the typed errors.
var (
	errUnexpectedEOF = errors.New("unexpected end of data")
	errOverlongLEB   = errors.New("LEB128 integer too long")
	errLEBOverflow   = errors.New("LEB128 integer overflows its type")
	errInvalidUTF8   = errors.New("name is not valid UTF-8")
	errUnknownKind   = errors.New("unknown external kind")
	errLimitsFlags   = errors.New("invalid limits flags")
	errMutability    = errors.New("invalid global mutability")
	errTrailingBytes = errors.New("trailing bytes after last entry")
)

// FormatError reports a buffer that is not a valid container: bad magic,
// unsupported version, truncated header or a section overrunning the buffer.
type FormatError struct {
	Err    error
	Reason string
	Offset int
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wasm: %s at offset %d: %v", e.Reason, e.Offset, e.Err)
	}

	return fmt.Sprintf("wasm: %s at offset %d", e.Reason, e.Offset)
}

// Is makes every FormatError match [ErrFormat].
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// EntryDecodeError reports an import or export entry that could not be decoded.
// Index is -1 when the entry count itself is unreadable.
type EntryDecodeError struct {
	Err     error
	Section string
	Index   int
	Offset  int
}

func (e *EntryDecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("wasm: %s section at offset %d: %v", e.Section, e.Offset, e.Err)
	}

	return fmt.Sprintf("wasm: %s entry %d at offset %d: %v", e.Section, e.Index, e.Offset, e.Err)
}

// Is makes every EntryDecodeError match [ErrEntryDecode].
func (e *EntryDecodeError) Is(target error) bool { return target == ErrEntryDecode }

func (e *EntryDecodeError) Unwrap() error { return e.Err }
