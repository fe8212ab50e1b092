package probe

import "context"

// CheckResult is the unified result of a single probe.
//
// StatusCode is the HTTP status when available and 0 for transport, DNS and
// SQL failures.
type CheckResult struct {
	Name       string  `json:"name"`
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	StatusCode int     `json:"status_code,omitempty"`
	LatencyMS  float64 `json:"latency_ms,omitempty"`
}

// Checker is implemented by any service check (HTTP, DNS, SQL, etc.)
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}
