// Package batch classifies collections of modules and aggregates per-category counts.
package batch

import (
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/wasmprov/pkg/classify"
)

// ErrTooLarge marks an input skipped because it exceeds the size limit.
var ErrTooLarge = errors.New("module exceeds size limit")

const percentScale = 100

// Outcome is the per-module result of a run.
type Outcome struct {
	// Err is set when the module could not be read or parsed. Category and
	// Rule are meaningless then.
	Err error

	ID   string
	Rule string

	Hash     uint64
	Size     int
	Category classify.Category

	// Cached reports that the verdict came from the content-hash cache.
	Cached bool
}

// Failure is a module excluded from the counts.
type Failure struct {
	Err error
	ID  string
}

// Result aggregates the outcomes of a run. Total counts classified modules
// only; failures are listed separately and never counted as Unknown.
type Result struct {
	Counts map[classify.Category]int
	Failed []Failure
	Total  int
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{Counts: make(map[classify.Category]int)}
}

// Record adds one outcome.
func (r *Result) Record(o Outcome) {
	if o.Err != nil {
		r.Failed = append(r.Failed, Failure{ID: o.ID, Err: o.Err})

		return
	}

	r.Counts[o.Category]++
	r.Total++
}

// Merge adds other's counts and failures to r. Merging is commutative and
// associative up to the order of Failed.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}

	for cat, n := range other.Counts {
		r.Counts[cat] += n
	}

	r.Total += other.Total
	r.Failed = append(r.Failed, other.Failed...)
}

// Count returns the number of modules classified as cat.
func (r *Result) Count(cat classify.Category) int {
	return r.Counts[cat]
}

// Sum returns the sum of all category counts. It always equals Total.
func (r *Result) Sum() int {
	sum := 0
	for _, n := range r.Counts {
		sum += n
	}

	return sum
}

// UnclassifiedPercent returns the share of Unknown modules as a percentage
// rounded to the nearest integer, ties to even (1 of 8 is 12). The boolean is false when nothing was
// classified, in which case no division is performed.
func (r *Result) UnclassifiedPercent() (int, bool) {
	if r.Total == 0 {
		return 0, false
	}

	return int(math.RoundToEven(float64(r.Counts[classify.Unknown]) * percentScale / float64(r.Total))), true
}

func (r *Result) sortFailures() {
	slices.SortStableFunc(r.Failed, func(a, b Failure) int { return strings.Compare(a.ID, b.ID) })
}
