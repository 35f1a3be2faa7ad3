package wasm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	headerSize = 8

	// Version is the only binary format version accepted by Parse. Component
	// model binaries share the magic but carry a different version word.
	Version uint32 = 1
)

// Section ids decoded by Parse. All others are skipped.
const (
	SectionCustom byte = 0
	SectionImport byte = 2
	SectionExport byte = 7
)

const (
	sectionNameImport = "import"
	sectionNameExport = "export"

	// minImportSize is a namespace length, a name length, a kind and a one-byte descriptor.
	minImportSize = 4
	// minExportSize is a name length, a kind and a one-byte index.
	minExportSize = 3

	limitsHasMax   = 0x01
	limitsMemory64 = 0x04
	limitsMaxFlags = 0x07

	valTypeRefNull = 0x63
	valTypeRef     = 0x64
)

// Magic is the four-byte preamble of every WebAssembly binary.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Parse decodes the import and export sections of buf.
//
// A broken header or section framing yields a *FormatError. A broken entry
// inside the import or export section yields an *EntryDecodeError. In both
// cases no Module is returned: the tables are count-prefixed, so nothing after
// a bad entry can be trusted.
func Parse(buf []byte) (*Module, error) {
	if len(buf) < headerSize {
		return nil, &FormatError{Reason: "truncated header", Offset: len(buf)}
	}

	if !bytes.Equal(buf[:len(Magic)], Magic) {
		return nil, &FormatError{Reason: "bad magic", Offset: 0}
	}

	if v := binary.LittleEndian.Uint32(buf[len(Magic):headerSize]); v != Version {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version 0x%08x", v), Offset: len(Magic)}
	}

	mod := &Module{}
	rd := &reader{buf: buf, pos: headerSize}

	for !rd.done() {
		start := rd.pos

		id, err := rd.readByte()
		if err != nil {
			return nil, &FormatError{Reason: "section id", Offset: start, Err: err}
		}

		size, err := rd.u32()
		if err != nil {
			return nil, &FormatError{Reason: "section size", Offset: start, Err: err}
		}

		payload, err := rd.sub(int64(size))
		if err != nil {
			return nil, &FormatError{Reason: "section overruns buffer", Offset: start, Err: err}
		}

		switch id {
		case SectionImport:
			imports, err := decodeImports(payload)
			if err != nil {
				return nil, err
			}

			mod.Imports = append(mod.Imports, imports...)
		case SectionExport:
			exports, err := decodeExports(payload)
			if err != nil {
				return nil, err
			}

			mod.Exports = append(mod.Exports, exports...)
		}
	}

	return mod, nil
}

func decodeImports(rd *reader) ([]Import, error) {
	count, err := rd.u32()
	if err != nil {
		return nil, &EntryDecodeError{Section: sectionNameImport, Index: -1, Offset: rd.offset(), Err: err}
	}

	imports := make([]Import, 0, min(int(count), rd.remaining()/minImportSize))

	for idx := range int(count) {
		start := rd.offset()

		imp, err := decodeImport(rd)
		if err != nil {
			return nil, &EntryDecodeError{Section: sectionNameImport, Index: idx, Offset: start, Err: err}
		}

		imports = append(imports, imp)
	}

	if !rd.done() {
		return nil, &EntryDecodeError{Section: sectionNameImport, Index: int(count), Offset: rd.offset(), Err: errTrailingBytes}
	}

	return imports, nil
}

func decodeImport(rd *reader) (Import, error) {
	module, err := rd.name()
	if err != nil {
		return Import{}, err
	}

	name, err := rd.name()
	if err != nil {
		return Import{}, err
	}

	kind, err := rd.readByte()
	if err != nil {
		return Import{}, err
	}

	imp := Import{Module: module, Name: name, Kind: ExternalKind(kind)}

	switch imp.Kind {
	case KindFunc:
		_, err = rd.u32()
	case KindTable:
		if err = rd.skipValType(); err == nil {
			err = rd.skipLimits()
		}
	case KindMemory:
		err = rd.skipLimits()
	case KindGlobal:
		err = rd.skipGlobalType()
	case KindTag:
		if _, err = rd.readByte(); err == nil {
			_, err = rd.u32()
		}
	default:
		err = errUnknownKind
	}

	if err != nil {
		return Import{}, err
	}

	return imp, nil
}

func decodeExports(rd *reader) ([]Export, error) {
	count, err := rd.u32()
	if err != nil {
		return nil, &EntryDecodeError{Section: sectionNameExport, Index: -1, Offset: rd.offset(), Err: err}
	}

	exports := make([]Export, 0, min(int(count), rd.remaining()/minExportSize))

	for idx := range int(count) {
		start := rd.offset()

		exp, err := decodeExport(rd)
		if err != nil {
			return nil, &EntryDecodeError{Section: sectionNameExport, Index: idx, Offset: start, Err: err}
		}

		exports = append(exports, exp)
	}

	if !rd.done() {
		return nil, &EntryDecodeError{Section: sectionNameExport, Index: int(count), Offset: rd.offset(), Err: errTrailingBytes}
	}

	return exports, nil
}

func decodeExport(rd *reader) (Export, error) {
	name, err := rd.name()
	if err != nil {
		return Export{}, err
	}

	kind, err := rd.readByte()
	if err != nil {
		return Export{}, err
	}

	if ExternalKind(kind) > KindTag {
		return Export{}, errUnknownKind
	}

	if _, err := rd.u32(); err != nil {
		return Export{}, err
	}

	return Export{Name: name, Kind: ExternalKind(kind)}, nil
}

// reader is a cursor over a byte slice. base is the absolute file offset of
// buf[0], so errors from section sub-readers point into the whole module buffer.
type reader struct {
	buf  []byte
	pos  int
	base int
}

func (rd *reader) done() bool { return rd.pos >= len(rd.buf) }

func (rd *reader) remaining() int { return len(rd.buf) - rd.pos }

func (rd *reader) offset() int { return rd.base + rd.pos }

func (rd *reader) readByte() (byte, error) {
	if rd.done() {
		return 0, errUnexpectedEOF
	}

	b := rd.buf[rd.pos]
	rd.pos++

	return b, nil
}

func (rd *reader) bytes(n int64) ([]byte, error) {
	if n > int64(rd.remaining()) {
		return nil, errUnexpectedEOF
	}

	out := rd.buf[rd.pos : rd.pos+int(n)]
	rd.pos += int(n)

	return out, nil
}

// sub returns a reader over the next n bytes and advances past them.
func (rd *reader) sub(n int64) (*reader, error) {
	start := rd.offset()

	payload, err := rd.bytes(n)
	if err != nil {
		return nil, err
	}

	return &reader{buf: payload, base: start}, nil
}

func (rd *reader) u32() (uint32, error) {
	v, err := rd.uleb(32)

	return uint32(v), err
}

func (rd *reader) u64() (uint64, error) {
	return rd.uleb(64)
}

// uleb decodes an unsigned LEB128 integer of at most bits significant bits.
// Encodings longer than ceil(bits/7) bytes, or with bits set beyond the
// type's width in the final byte, are rejected.
func (rd *reader) uleb(bits uint) (uint64, error) {
	var result uint64

	for shift := uint(0); shift < bits; shift += 7 {
		b, err := rd.readByte()
		if err != nil {
			return 0, err
		}

		if left := bits - shift; left < 7 && uint64(b&0x7f)>>left != 0 {
			return 0, errLEBOverflow
		}

		result |= uint64(b&0x7f) << shift

		if b&0x80 == 0 {
			return result, nil
		}
	}

	return 0, errOverlongLEB
}

// skipSLEB33 consumes a signed 33-bit LEB128 heap type.
func (rd *reader) skipSLEB33() error {
	for range 5 {
		b, err := rd.readByte()
		if err != nil {
			return err
		}

		if b&0x80 == 0 {
			return nil
		}
	}

	return errOverlongLEB
}

func (rd *reader) name() (string, error) {
	n, err := rd.u32()
	if err != nil {
		return "", err
	}

	raw, err := rd.bytes(int64(n))
	if err != nil {
		return "", err
	}

	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}

	return string(raw), nil
}

func (rd *reader) skipValType() error {
	vt, err := rd.readByte()
	if err != nil {
		return err
	}

	if vt == valTypeRefNull || vt == valTypeRef {
		return rd.skipSLEB33()
	}

	return nil
}

func (rd *reader) skipGlobalType() error {
	if err := rd.skipValType(); err != nil {
		return err
	}

	mut, err := rd.readByte()
	if err != nil {
		return err
	}

	if mut > 1 {
		return errMutability
	}

	return nil
}

func (rd *reader) skipLimits() error {
	flags, err := rd.u32()
	if err != nil {
		return err
	}

	if flags > limitsMaxFlags {
		return errLimitsFlags
	}

	read := rd.u64
	if flags&limitsMemory64 == 0 {
		read = func() (uint64, error) {
			v, err := rd.u32()

			return uint64(v), err
		}
	}

	if _, err := read(); err != nil {
		return err
	}

	if flags&limitsHasMax != 0 {
		if _, err := read(); err != nil {
			return err
		}
	}

	return nil
}
