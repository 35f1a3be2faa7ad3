// Package report renders batch results as per-module lines and summaries.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Sumatoshi-tech/wasmprov/pkg/batch"
	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const percentageValue = 100

// ErrUnknownFormat is returned for an output format with no renderer.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML}
}

// Line writes the per-module line for out: "Category, identifier", or
// "error, identifier: message" when the module could not be classified.
func Line(w io.Writer, out batch.Outcome) error {
	var err error

	if out.Err != nil {
		_, err = fmt.Fprintf(w, "error, %s: %v\n", out.ID, out.Err)
	} else {
		_, err = fmt.Fprintf(w, "%s, %s\n", out.Category, out.ID)
	}

	if err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	return nil
}

// CategoryCount is one row of a summary.
type CategoryCount struct {
	Category classify.Category `json:"category" yaml:"category"`
	Count    int               `json:"count"    yaml:"count"`
	Share    float64           `json:"share"    yaml:"share"`
}

// FailureEntry names a module excluded from the totals.
type FailureEntry struct {
	ID    string `json:"id"    yaml:"id"`
	Error string `json:"error" yaml:"error"`
}

// Summary is the report view of a batch.Result. UnclassifiedPercent is nil
// when nothing was classified.
type Summary struct {
	UnclassifiedPercent *int            `json:"unclassified_percent,omitempty" yaml:"unclassified_percent,omitempty"`
	Categories          []CategoryCount `json:"categories"                     yaml:"categories"`
	Failures            []FailureEntry  `json:"failures"                       yaml:"failures"`
	Total               int             `json:"total"                          yaml:"total"`
	Failed              int             `json:"failed"                         yaml:"failed"`
}

// NewSummary lists every category in report order, including empty ones.
func NewSummary(res *batch.Result) Summary {
	if res == nil {
		res = batch.NewResult()
	}

	sum := Summary{
		Categories: make([]CategoryCount, 0, len(classify.All())),
		Failures:   make([]FailureEntry, 0, len(res.Failed)),
		Total:      res.Total,
		Failed:     len(res.Failed),
	}

	for _, cat := range classify.All() {
		row := CategoryCount{Category: cat, Count: res.Count(cat)}
		if res.Total > 0 {
			row.Share = float64(row.Count) / float64(res.Total)
		}

		sum.Categories = append(sum.Categories, row)
	}

	for _, f := range res.Failed {
		sum.Failures = append(sum.Failures, FailureEntry{ID: f.ID, Error: f.Err.Error()})
	}

	sort.SliceStable(sum.Failures, func(i, j int) bool { return sum.Failures[i].ID < sum.Failures[j].ID })

	if pct, ok := res.UnclassifiedPercent(); ok {
		sum.UnclassifiedPercent = &pct
	}

	return sum
}

// Options tune rendering.
type Options struct {
	NoColor bool
}

// Render writes sum in the given format.
func Render(w io.Writer, format string, sum Summary, opts Options) error {
	switch format {
	case FormatText, "":
		return renderText(w, sum, opts)
	case FormatJSON:
		return renderJSON(w, sum)
	case FormatYAML:
		return renderYAML(w, sum)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
