// Package classify maps the symbol tables of a WebAssembly module to the
// toolchain that most likely produced it.
package classify

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when parsing a category name that is not defined.
var ErrUnknownCategory = errors.New("unknown category")

// Category is a probable originating toolchain. The zero value is Unknown.
type Category int

// Categories. Adding one requires a rule and a position in the priority order.
const (
	// Unknown means no heuristic matched.
	Unknown Category = iota
	Rust
	Emscripten
	AssemblyScript
	Blazor
	Go
	// LikelyCompressed marks minified modules with no toolchain-specific markers.
	// The default rule chain never produces it.
	LikelyCompressed
)

var categoryNames = [...]string{
	Unknown:          "Unknown",
	Rust:             "Rust",
	Emscripten:       "Emscripten",
	AssemblyScript:   "AssemblyScript",
	Blazor:           "Blazor",
	Go:               "Go",
	LikelyCompressed: "LikelyCompressed",
}

// All returns every category in report order.
func All() []Category {
	return []Category{Rust, Emscripten, AssemblyScript, Blazor, Go, LikelyCompressed, Unknown}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}

	return categoryNames[c]
}

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, error) {
	for idx, n := range categoryNames {
		if n == name {
			return Category(idx), nil
		}
	}

	return Unknown, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}

	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}
