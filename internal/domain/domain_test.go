package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUniqueKey_StringAndExplode(t *testing.T) {
	k := UniqueKey{Type: "web", Label: "health", Identifier: "https://a.com/x|y"}
	s := k.String()
	if s != "web|health|https://a.com/x|y" {
		t.Fatalf("String()=%q", s)
	}
	if got := ExplodeUniqueKey(s); got != k {
		t.Fatalf("ExplodeUniqueKey(%q)=%+v want %+v", s, got, k)
	}
	if got := ExplodeUniqueKey("web"); got != (UniqueKey{Type: "web"}) {
		t.Fatalf("short key exploded to %+v", got)
	}
}

func TestUniqueKey_WildcardMatching(t *testing.T) {
	a := UniqueKey{Type: "web", Label: "*", Identifier: "a.com"}
	b := UniqueKey{Type: "web", Label: "latency", Identifier: "a.com"}
	if !a.Matches(b) || !b.Matches(a) {
		t.Fatalf("label wildcard should match both ways")
	}
	c := UniqueKey{Type: "db", Label: "x", Identifier: "*"}
	d := UniqueKey{Type: "db", Label: "x", Identifier: "anything"}
	if !d.Matches(c) {
		t.Fatalf("identifier wildcard should match")
	}
	if a.Matches(UniqueKey{Type: "dns", Label: "latency", Identifier: "a.com"}) {
		t.Fatalf("type mismatch must not match")
	}
}

func TestFindMatchingKeyFor(t *testing.T) {
	snaps := []Snapshot{
		{Type: "web", Label: "health", Identifier: "b.com"},
		{Type: "web", Label: "health", Identifier: "a.com"},
	}
	got, ok := FindMatchingKeyFor(UniqueKey{Type: "web", Label: "*", Identifier: "a.com"}, snaps)
	if !ok || got.Identifier != "a.com" {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
	if _, ok := FindMatchingKeyFor(UniqueKey{Type: "dns", Label: "x", Identifier: "y"}, snaps); ok {
		t.Fatalf("unexpected match")
	}
}

func TestTimeRange_WrapAroundMidnight(t *testing.T) {
	tr, err := ParseTimeRange("21:00-24:00")
	if err != nil {
		t.Fatal(err)
	}
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want bool
	}{
		{day.Add(23*time.Hour + 59*time.Minute), true},
		{day.Add(24 * time.Hour), true},
		{day.Add(24*time.Hour + time.Minute), false},
		{day.Add(21 * time.Hour), true},
		{day.Add(20*time.Hour + 59*time.Minute), false},
	}
	for _, c := range cases {
		if got := tr.Contains(c.at); got != c.want {
			t.Fatalf("Contains(%s)=%v want %v", c.at.Format("15:04"), got, c.want)
		}
	}
}

func TestTimeRange_Invalid(t *testing.T) {
	for _, s := range []string{"", "9-17", "25:00-26:00", "10:61-11:00", "24:30-01:00"} {
		if _, err := ParseTimeRange(s); err == nil {
			t.Fatalf("ParseTimeRange(%q) should fail", s)
		}
	}
}

func TestAlertRule_NormalizeDefaultsAndType(t *testing.T) {
	r := AlertRule{}
	if err := r.Normalize(); err != nil {
		t.Fatal(err)
	}
	if r.Count != 1 || r.Type() != RuleConsecutiveCount {
		t.Fatalf("empty rule should default to count=1, got %+v", r)
	}

	w := AlertRule{Any: 3}
	if err := w.Normalize(); err != nil {
		t.Fatal(err)
	}
	if w.Type() != RuleAnyInWindow || w.WindowDuration() != DefaultWindow {
		t.Fatalf("any rule defaults wrong: type=%v window=%v", w.Type(), w.WindowDuration())
	}

	neg := AlertRule{Any: 2, Window: "-10m"}
	if err := neg.Normalize(); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := neg.FromDate(now); !got.Equal(now.Add(-10 * time.Minute)) {
		t.Fatalf("FromDate=%v", got)
	}

	bad := AlertRule{Count: 1, Any: 1}
	if err := bad.Normalize(); err == nil {
		t.Fatalf("count+any must be rejected")
	}
}

func TestAlertRule_IsValidNow(t *testing.T) {
	tc := TimeContext{Location: time.UTC}
	r := AlertRule{Days: StringList{"mon", "tue"}, Time: StringList{"09:00-12:00", "14:00-17:00"}}
	if err := r.Normalize(); err != nil {
		t.Fatal(err)
	}
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	if !r.IsValidNow(monday.Add(10*time.Hour), tc) {
		t.Fatalf("monday 10:00 should be valid")
	}
	if r.IsValidNow(monday.Add(13*time.Hour), tc) {
		t.Fatalf("monday 13:00 is between ranges")
	}
	if !r.IsValidNow(monday.Add(15*time.Hour), tc) {
		t.Fatalf("monday 15:00 should be valid")
	}
	if r.IsValidNow(monday.AddDate(0, 0, 2).Add(10*time.Hour), tc) {
		t.Fatalf("wednesday is excluded")
	}
}

func TestAlertRule_IsValidNowUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	r := AlertRule{Time: StringList{"09:00-10:00"}}
	if err := r.Normalize(); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 10, 12, 6, 30, 0, 0, time.UTC) // 09:30 in UTC+3
	if !r.IsValidNow(at, TimeContext{Location: loc}) {
		t.Fatalf("rule should be evaluated in the context location")
	}
	if r.IsValidNow(at, TimeContext{Location: time.UTC}) {
		t.Fatalf("06:30 UTC is outside 09:00-10:00")
	}
}

func mustConfig(t *testing.T, c AlertConfiguration) *AlertConfiguration {
	t.Helper()
	if err := c.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return &c
}

func TestAlertConfiguration_NormalizeAddsWebAndFiltersLinks(t *testing.T) {
	c := mustConfig(t, AlertConfiguration{
		Channels: []string{"slack"},
		Links:    []Link{{Label: "runbook", URL: "https://wiki"}, {Label: "dangling"}},
	})
	if !c.HasChannel("slack") || !c.HasChannel(WebChannel) || len(c.Channels) != 2 {
		t.Fatalf("channels=%v", c.Channels)
	}
	if len(c.Links) != 1 || c.Links[0].Label != "runbook" {
		t.Fatalf("links=%v", c.Links)
	}
	again := mustConfig(t, *c)
	if len(again.Channels) != 2 {
		t.Fatalf("web must not be appended twice: %v", again.Channels)
	}
}

func TestFindFirstValidRule(t *testing.T) {
	tc := TimeContext{Location: time.UTC}
	monday10 := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)
	key := UniqueKey{Type: "web", Label: "health", Identifier: "a.com"}

	t.Run("no rules yields default", func(t *testing.T) {
		c := mustConfig(t, AlertConfiguration{Channels: []string{"slack"}})
		r := c.FindFirstValidRule(key, monday10, tc)
		if r == nil || !r.IsDefault || r.Count != 1 {
			t.Fatalf("want default rule, got %+v", r)
		}
	})

	t.Run("direct match wins over unmatched", func(t *testing.T) {
		c := mustConfig(t, AlertConfiguration{Rules: []AlertRule{
			{Count: 5},
			{Count: 2, Match: `a\.com`},
		}})
		r := c.FindFirstValidRule(key, monday10, tc)
		if r == nil || r.Count != 2 {
			t.Fatalf("want direct match, got %+v", r)
		}
	})

	t.Run("direct matches off schedule suppress", func(t *testing.T) {
		c := mustConfig(t, AlertConfiguration{Rules: []AlertRule{
			{Count: 5},
			{Count: 2, Match: `a\.com`, Days: StringList{"sat"}},
		}})
		if r := c.FindFirstValidRule(key, monday10, tc); r != nil {
			t.Fatalf("want nil, got %+v", r)
		}
	})

	t.Run("unmatched rules skip non-matching regex", func(t *testing.T) {
		c := mustConfig(t, AlertConfiguration{Rules: []AlertRule{
			{Count: 9, Match: `b\.com`},
			{Count: 1, Time: StringList{"00:00-01:00"}},
			{Count: 3},
		}})
		r := c.FindFirstValidRule(key, monday10, tc)
		if r == nil || r.Count != 3 {
			t.Fatalf("want count=3 fallback, got %+v", r)
		}
	})

	t.Run("unmatched all invalid yields nil", func(t *testing.T) {
		c := mustConfig(t, AlertConfiguration{Rules: []AlertRule{{Count: 1, Days: StringList{"sun"}}}})
		if r := c.FindFirstValidRule(key, monday10, tc); r != nil {
			t.Fatalf("want nil, got %+v", r)
		}
	})
}

func TestDecodeAlertConfiguration_RoundTrip(t *testing.T) {
	c := mustConfig(t, AlertConfiguration{
		Channels:        []string{"chat"},
		Rules:           []AlertRule{{Any: 2, Window: "-10m", Match: "web"}},
		ExceptionPolicy: "fallback",
	})
	raw, err := EncodeAlertConfiguration(c)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAlertConfiguration(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExceptionPolicy != "fallback" || len(got.Rules) != 1 || got.Rules[0].WindowDuration() != 10*time.Minute {
		t.Fatalf("decoded %+v", got)
	}
	if !got.Rules[0].MatchesKey(UniqueKey{Type: "web"}) {
		t.Fatalf("decoded rule regex should be compiled")
	}
	if nilCfg, err := DecodeAlertConfiguration(nil); err != nil || nilCfg != nil {
		t.Fatalf("empty input should decode to nil, got %+v %v", nilCfg, err)
	}
}

func TestAffected_PreservesInsertionOrderThroughJSON(t *testing.T) {
	a := NewAffected()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, k := range []string{"z|z|z", "a|a|a", "m|m|m"} {
		a.Set(k, AffectedEntry{Date: base.Add(time.Duration(i) * time.Minute), Result: k})
	}
	a.Set("a|a|a", AffectedEntry{Date: base, Result: "updated"})

	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var back Affected
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	keys := back.Keys()
	if len(keys) != 3 || keys[0] != "z|z|z" || keys[1] != "a|a|a" || keys[2] != "m|m|m" {
		t.Fatalf("order lost: %v", keys)
	}
	if e, _ := back.Get("a|a|a"); e.Result != "updated" {
		t.Fatalf("entry not replaced: %+v", e)
	}
	back.Delete("z|z|z")
	if back.Len() != 2 || back.Keys()[0] != "a|a|a" {
		t.Fatalf("delete broke order: %v", back.Keys())
	}
}

func TestAlertState_ShouldPersist(t *testing.T) {
	s := NewAlertState("slack")
	if s.ShouldPersist() {
		t.Fatalf("empty state must not persist")
	}
	s.Record(Snapshot{Type: "web", Label: "h", Identifier: "a"})
	if !s.ShouldPersist() {
		t.Fatalf("state with affected entries should persist")
	}
	s.Muted = true
	if s.ShouldPersist() {
		t.Fatalf("muted state must not persist")
	}
}
