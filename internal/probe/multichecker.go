package probe

import (
	"context"
	"strings"
)

// MultiChecker runs every checker against the same target. It succeeds only
// when all of them do.
type MultiChecker struct {
	Checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{Checkers: checkers}
}

func (m *MultiChecker) Run(ctx context.Context, target string) []CheckResult {
	results := make([]CheckResult, 0, len(m.Checkers))
	for _, c := range m.Checkers {
		results = append(results, c.Check(ctx, target))
	}
	return results
}

func (m *MultiChecker) Check(ctx context.Context, target string) CheckResult {
	out := CheckResult{Success: true}
	var names, msgs []string
	for _, r := range m.Run(ctx, target) {
		names = append(names, r.Name)
		msgs = append(msgs, r.Name+": "+r.Message)
		out.Success = out.Success && r.Success
		out.LatencyMS += r.LatencyMS
		if r.StatusCode != 0 {
			out.StatusCode = r.StatusCode
		}
	}
	out.Name = strings.Join(names, "+")
	out.Message = strings.Join(msgs, "; ")
	return out
}
