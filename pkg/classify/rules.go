package classify

import (
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/wasmprov/pkg/wasm"
)

// Rule names of the default chain.
const (
	RuleEmscripten       = "emscripten"
	RuleBlazor           = "blazor"
	RuleRust             = "rust"
	RuleGo               = "go"
	RuleAssemblyScript   = "assemblyscript"
	RuleEmscriptenLikely = "emscripten-likely"
)

// Rule is one named heuristic. Match must be pure.
type Rule struct {
	Match    func(*wasm.Module) bool
	Name     string
	Category Category
}

// Rules is an ordered rule chain. The first matching rule decides the category.
type Rules []Rule

// DefaultRules returns a fresh copy of the built-in chain.
//
// Order carries meaning: modules often carry markers of several toolchains
// (a Rust crate linked through Emscripten, say) and the earlier rule is the
// stronger evidence.
func DefaultRules() Rules {
	return Rules{
		{Name: RuleEmscripten, Category: Emscripten, Match: isEmscripten},
		{Name: RuleBlazor, Category: Blazor, Match: isBlazor},
		{Name: RuleRust, Category: Rust, Match: isRust},
		{Name: RuleGo, Category: Go, Match: isGo},
		{Name: RuleAssemblyScript, Category: AssemblyScript, Match: isAssemblyScript},
		{Name: RuleEmscriptenLikely, Category: Emscripten, Match: isLikelyEmscripten},
	}
}

// Names returns the rule names in evaluation order.
func (r Rules) Names() []string {
	names := make([]string, len(r))
	for idx, rule := range r {
		names[idx] = rule.Name
	}

	return names
}

// Without returns a copy of r with the named rule removed.
func (r Rules) Without(name string) Rules {
	return slices.DeleteFunc(slices.Clone(r), func(rule Rule) bool { return rule.Name == name })
}

// Before returns a copy of r with rule inserted ahead of the named rule,
// or appended when no rule has that name.
func (r Rules) Before(name string, rule Rule) Rules {
	out := slices.Clone(r)

	idx := slices.IndexFunc(out, func(existing Rule) bool { return existing.Name == name })
	if idx < 0 {
		return append(out, rule)
	}

	return slices.Insert(out, idx, rule)
}

func importNameContains(substr string) func(wasm.Import) bool {
	return func(imp wasm.Import) bool { return strings.Contains(imp.Name, substr) }
}

func hasImport(module, name string) func(wasm.Import) bool {
	return func(imp wasm.Import) bool { return imp.Module == module && imp.Name == name }
}

func hasExport(name string) func(wasm.Export) bool {
	return func(exp wasm.Export) bool { return exp.Name == name }
}

func isEmscripten(m *wasm.Module) bool {
	return m.AnyImport(importNameContains("emscripten"))
}

func isBlazor(m *wasm.Module) bool {
	return m.AnyImport(importNameContains("mono"))
}

// isRust looks for wasm-bindgen glue.
func isRust(m *wasm.Module) bool {
	return m.AnyImport(func(imp wasm.Import) bool {
		return strings.Contains(imp.Name, "wbindgen") ||
			strings.Contains(imp.Name, "wbg") ||
			imp.Module == "wbg" ||
			imp.Module == "wbindgen"
	}) || m.AnyExport(func(exp wasm.Export) bool { return strings.Contains(exp.Name, "wbindgen") })
}

// isGo matches any import name containing "go", which also catches unrelated
// symbols such as "gopher" or "algorithm".
func isGo(m *wasm.Module) bool {
	return m.AnyImport(func(imp wasm.Import) bool {
		return imp.Module == "go" || strings.Contains(imp.Name, "go")
	}) || m.AnyExport(func(exp wasm.Export) bool { return strings.Contains(exp.Name, "go_scheduler") })
}

// isAssemblyScript: env.abort is the AssemblyScript runtime's trap hook;
// the hyphenate export belongs to one widely deployed AssemblyScript library.
func isAssemblyScript(m *wasm.Module) bool {
	return m.AnyImport(hasImport("env", "abort")) || m.AnyExport(hasExport("hyphenate"))
}

// isLikelyEmscripten recognizes minified Emscripten output from the shape of
// its memory-management ABI once the symbol names are stripped.
func isLikelyEmscripten(m *wasm.Module) bool {
	return (m.AnyImport(hasImport("a", "a")) && m.AnyImport(hasImport("a", "b"))) ||
		(m.AnyImport(hasImport("env", "a")) && m.AnyImport(hasImport("env", "b"))) ||
		m.AnyExport(hasExport("malloc")) ||
		m.AnyImport(hasImport("env", "__memory_base"))
}
