// Package enrich holds the best-effort collaborators of the pipeline: keyword
// insight, web search and length optimization. None of them returns an error;
// a failure comes back as a Result with a Warning and the zero value.
package enrich

import "fmt"

// Result is the outcome of one enrichment call. A non-empty Warning means the
// call failed and Value is the zero value. Calls and Cost account for any oracle
// use behind the call.
type Result[T any] struct {
	Value   T
	Warning string
	Calls   int
	Cost    float64
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Degraded records a failed call as a warning.
func Degraded[T any](op string, err error) Result[T] {
	return Result[T]{Warning: fmt.Sprintf("%s unavailable: %v", op, err)}
}

// Failed reports whether the call degraded.
func (r Result[T]) Failed() bool {
	return r.Warning != ""
}

// WithUsage returns r with its oracle accounting set.
func (r Result[T]) WithUsage(calls int, cost float64) Result[T] {
	r.Calls, r.Cost = calls, cost
	return r
}
