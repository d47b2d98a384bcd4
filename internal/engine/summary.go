package engine

import (
	"fmt"
	"strings"
)

// DefaultErrorDisplay is how many errors are shown before summarizing.
const DefaultErrorDisplay = 5

// SummarizeErrors returns the first n errors followed by a count of the
// rest, for operator-facing output.
func SummarizeErrors(errs []string, n int) []string {
	if n <= 0 {
		n = DefaultErrorDisplay
	}
	if len(errs) <= n {
		return errs
	}
	out := make([]string, 0, n+1)
	out = append(out, errs[:n]...)
	return append(out, fmt.Sprintf("... and %d more", len(errs)-n))
}

// JoinErrors renders SummarizeErrors as a single line.
func JoinErrors(errs []string, n int) string {
	return strings.Join(SummarizeErrors(errs, n), "; ")
}
