// Package wasmtest encodes synthetic WebAssembly binaries for tests.
package wasmtest

import (
	"github.com/Sumatoshi-tech/wasmprov/pkg/wasm"
)

// Builder accumulates symbol tables and raw sections and encodes them as a
// binary module. The zero value is ready to use.
type Builder struct {
	raw     [][]byte
	imports [][]byte
	exports [][]byte
}

// New returns an empty Builder.
func New() *Builder { return &Builder{} }

// Import adds a function import.
func (b *Builder) Import(module, name string) *Builder {
	return b.ImportKind(module, name, wasm.KindFunc)
}

// ImportKind adds an import of the given kind with a minimal valid descriptor.
func (b *Builder) ImportKind(module, name string, kind wasm.ExternalKind) *Builder {
	entry := append(Name(module), Name(name)...)
	entry = append(entry, byte(kind))

	switch kind {
	case wasm.KindFunc:
		entry = append(entry, ULEB(0)...)
	case wasm.KindTable:
		entry = append(entry, 0x70, 0x00, 0x00)
	case wasm.KindMemory:
		entry = append(entry, 0x01, 0x01, 0x10)
	case wasm.KindGlobal:
		entry = append(entry, 0x7f, 0x00)
	case wasm.KindTag:
		entry = append(entry, 0x00, 0x00)
	}

	b.imports = append(b.imports, entry)

	return b
}

// RawImport adds a pre-encoded import entry, for malformed-entry tests.
func (b *Builder) RawImport(entry []byte) *Builder {
	b.imports = append(b.imports, entry)

	return b
}

// Export adds a function export.
func (b *Builder) Export(name string) *Builder {
	entry := append(Name(name), byte(wasm.KindFunc))
	entry = append(entry, ULEB(uint64(len(b.exports)))...)
	b.exports = append(b.exports, entry)

	return b
}

// Section adds a raw section. Raw sections are emitted before the import
// and export sections, in the order they were added.
func (b *Builder) Section(id byte, payload []byte) *Builder {
	b.raw = append(b.raw, Section(id, payload))

	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	out := Header()

	for _, sec := range b.raw {
		out = append(out, sec...)
	}

	if len(b.imports) > 0 {
		out = append(out, Section(wasm.SectionImport, vector(b.imports))...)
	}

	if len(b.exports) > 0 {
		out = append(out, Section(wasm.SectionExport, vector(b.exports))...)
	}

	return out
}

// Header returns the magic and version preamble.
func Header() []byte {
	return append(append([]byte{}, wasm.Magic...), 0x01, 0x00, 0x00, 0x00)
}

// Section frames payload as a section with the given id.
func Section(id byte, payload []byte) []byte {
	out := append([]byte{id}, ULEB(uint64(len(payload)))...)

	return append(out, payload...)
}

// Name encodes a length-prefixed string.
func Name(s string) []byte {
	return append(ULEB(uint64(len(s))), s...)
}

// ULEB encodes v as unsigned LEB128.
func ULEB(v uint64) []byte {
	var out []byte

	for {
		b := byte(v & 0x7f)
		v >>= 7

		if v != 0 {
			out = append(out, b|0x80)

			continue
		}

		return append(out, b)
	}
}

func vector(entries [][]byte) []byte {
	out := ULEB(uint64(len(entries)))
	for _, e := range entries {
		out = append(out, e...)
	}

	return out
}
