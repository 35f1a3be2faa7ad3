package classify

import (
	"slices"

	"github.com/Sumatoshi-tech/wasmprov/pkg/wasm"
)

// Verdict is the outcome of classifying one module.
type Verdict struct {
	// Rule names the rule that matched. Empty for the Unknown fallback.
	Rule     string   `json:"rule,omitempty" yaml:"rule,omitempty"`
	Category Category `json:"category"       yaml:"category"`
}

// Classifier evaluates a rule chain with first-match-wins semantics.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules Rules
}

// New returns a Classifier over a copy of rules.
func New(rules Rules) *Classifier {
	return &Classifier{rules: slices.Clone(rules)}
}

// Default returns a Classifier over [DefaultRules].
func Default() *Classifier {
	return New(DefaultRules())
}

// Rules returns a copy of the chain in evaluation order.
func (c *Classifier) Rules() Rules {
	return slices.Clone(c.rules)
}

// Classify returns the category of the first matching rule, or Unknown.
func (c *Classifier) Classify(m *wasm.Module) Category {
	return c.Explain(m).Category
}

// Explain is Classify that also reports which rule matched.
func (c *Classifier) Explain(m *wasm.Module) Verdict {
	for _, rule := range c.rules {
		if rule.Match(m) {
			return Verdict{Category: rule.Category, Rule: rule.Name}
		}
	}

	return Verdict{Category: Unknown}
}
