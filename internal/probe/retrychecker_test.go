package probe

import (
	"context"
	"strings"
	"testing"
	"time"
)

// scripted replays results in order and counts calls.
type scripted struct {
	results []CheckResult
	calls   int
}

func (s *scripted) Check(ctx context.Context, target string) CheckResult {
	s.calls++
	if s.calls > len(s.results) {
		return CheckResult{Success: false, Message: "exhausted"}
	}
	return s.results[s.calls-1]
}

func TestRetryChecker_RecoversOnSecondAttempt(t *testing.T) {
	inner := &scripted{results: []CheckResult{
		{Success: false, Message: "503 Service Unavailable"},
		{Success: true, Message: "200 OK"},
	}}
	rc := &RetryChecker{Inner: inner, Attempts: 3, Backoff: time.Millisecond}

	out := rc.Check(context.Background(), "https://a.com")
	if !out.Success || out.Message != "200 OK" {
		t.Fatalf("got %+v", out)
	}
	if inner.calls != 2 {
		t.Fatalf("calls=%d want 2", inner.calls)
	}
}

func TestRetryChecker_ExhaustedAttemptsAnnotateLastFailure(t *testing.T) {
	inner := &scripted{results: []CheckResult{
		{Message: "timeout"},
		{Message: "connection refused"},
	}}
	rc := &RetryChecker{Inner: inner, Attempts: 2}

	out := rc.Check(context.Background(), "https://a.com")
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.Message != "connection refused (after retries)" {
		t.Fatalf("message=%q", out.Message)
	}
}

func TestRetryChecker_SingleAttemptIsNotAnnotated(t *testing.T) {
	rc := &RetryChecker{Inner: &scripted{results: []CheckResult{{Message: "down"}}}}
	if out := rc.Check(context.Background(), "x"); out.Message != "down" {
		t.Fatalf("message=%q", out.Message)
	}
	if rc.Attempts != 0 {
		t.Fatalf("Check must not rewrite Attempts")
	}
}

func TestRetryChecker_StopsWhenContextDone(t *testing.T) {
	inner := &scripted{results: []CheckResult{{Message: "down"}, {Success: true}}}
	rc := &RetryChecker{Inner: inner, Attempts: 5, Backoff: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := rc.Check(ctx, "x")
	if out.Success || inner.calls != 1 {
		t.Fatalf("got %+v after %d calls", out, inner.calls)
	}
	if !strings.Contains(out.Message, "cancelled") {
		t.Fatalf("message=%q", out.Message)
	}
}
