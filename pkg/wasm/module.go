// Package wasm reads the import and export tables of WebAssembly binary modules.
//
// Only the section framing and the two symbol-table sections are decoded.
// Every other section is skipped by its declared size without looking at the
// payload, so modules with exotic or malformed code, data or custom sections
// still parse as long as their framing is intact.
package wasm

import "fmt"

// ExternalKind is the kind tag carried by every import and export entry.
type ExternalKind byte

// External kinds of WebAssembly 2.0 plus tags from the exception-handling proposal.
const (
	KindFunc   ExternalKind = 0x00
	KindTable  ExternalKind = 0x01
	KindMemory ExternalKind = 0x02
	KindGlobal ExternalKind = 0x03
	KindTag    ExternalKind = 0x04
)

// String returns the text-format keyword of the kind.
func (k ExternalKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// Import is a symbol the module expects its host to supply.
type Import struct {
	// Module is the namespace the import is declared under.
	Module string
	// Name is the local field name inside the namespace.
	Name string
	Kind ExternalKind
}

// Export is a symbol the module makes available to its host.
type Export struct {
	Name string
	Kind ExternalKind
}

// Module holds the symbol tables of one parsed binary. It is never mutated
// after Parse returns it.
type Module struct {
	Imports []Import
	Exports []Export
}

// AnyImport reports whether at least one import satisfies pred.
// Imports are tested in file order and evaluation stops at the first match.
func (m *Module) AnyImport(pred func(Import) bool) bool {
	if m == nil {
		return false
	}

	for _, imp := range m.Imports {
		if pred(imp) {
			return true
		}
	}

	return false
}

// AnyExport reports whether at least one export satisfies pred.
func (m *Module) AnyExport(pred func(Export) bool) bool {
	if m == nil {
		return false
	}

	for _, exp := range m.Exports {
		if pred(exp) {
			return true
		}
	}

	return false
}
