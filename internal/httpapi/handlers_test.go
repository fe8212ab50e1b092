package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/digest"
	"github.com/hamed0406/watchdog/internal/domain"
	apimw "github.com/hamed0406/watchdog/internal/httpapi/middleware"
	"github.com/hamed0406/watchdog/internal/repo/memory"
)

// ---- test helpers ----

var now = time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	alert := &domain.AlertConfiguration{Channels: []string{"chat"}}
	if err := alert.Normalize(); err != nil {
		t.Fatal(err)
	}
	snaps := []domain.Snapshot{
		{Type: "web", Label: "health", Identifier: "https://a.com", LastResult: "503", Date: now.Add(-time.Hour), Alert: alert},
		{Type: "db", Label: "orders", Identifier: "primary", LastResult: "timeout", Date: now.Add(-time.Hour), Alert: alert},
	}
	if err := store.MutateAndPersistSnapshotState(ctx, snaps, nil); err != nil {
		t.Fatal(err)
	}

	state := domain.NewAlertState(domain.WebChannel)
	state.StartDate = now.Add(-time.Hour)
	state.Record(snaps[0])
	resolved := now.Add(-time.Minute)
	state.Affected.Set("dns|resolve|b.com", domain.AffectedEntry{Date: now.Add(-2 * time.Hour), Result: "NXDOMAIN", ResolvedDate: &resolved})
	if err := store.PersistAlerts(ctx, []*domain.AlertState{state}); err != nil {
		t.Fatal(err)
	}
	return store
}

func setupRouter(t *testing.T, store *memory.Store) http.Handler {
	t.Helper()
	log := zap.NewNop()

	mute := domain.MuteWindow{Match: `^db\|`}
	if err := mute.Normalize(); err != nil {
		t.Fatal(err)
	}
	tc := domain.TimeContext{Location: time.UTC, Clock: func() time.Time { return now }}
	srv := NewServer(log, store, "prod", []domain.MuteWindow{mute}, tc)

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}

	// very high rate limits to avoid flakiness in tests
	return srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000)
}

func do(t *testing.T, ts *httptest.Server, method, path, key string, body []byte) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error: %v", method, path, err)
	}
	return resp
}

// ---- tests ----

func TestHealthzIsOpen(t *testing.T) {
	ts := httptest.NewServer(setupRouter(t, memory.New()))
	defer ts.Close()

	resp := do(t, ts, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestStatus_PartitionsActiveMutedResolved(t *testing.T) {
	ts := httptest.NewServer(setupRouter(t, seededStore(t)))
	defer ts.Close()

	resp := do(t, ts, http.MethodGet, "/api/status", "pub_test", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var st digest.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Title != "prod" || len(st.Alerts) != 1 {
		t.Fatalf("unexpected status header: %+v", st)
	}
	if len(st.Active) != 1 || st.Active[0].Type != "web" {
		t.Fatalf("active=%+v", st.Active)
	}
	if len(st.Muted) != 1 || st.Muted[0].Type != "db" {
		t.Fatalf("muted=%+v", st.Muted)
	}
	if len(st.Resolved) != 1 || st.Resolved[0].Key != "dns|resolve|b.com" {
		t.Fatalf("resolved=%+v", st.Resolved)
	}
}

func TestReadRoutesNeedKey(t *testing.T) {
	ts := httptest.NewServer(setupRouter(t, seededStore(t)))
	defer ts.Close()

	for _, path := range []string{"/api/status", "/api/alerts", "/api/snapshots", "/api/mute-windows"} {
		resp := do(t, ts, http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without key: want 401, got %d", path, resp.StatusCode)
		}
		resp = do(t, ts, http.MethodGet, path, "adm_test", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s with admin key: want 200, got %d", path, resp.StatusCode)
		}
	}

	resp := do(t, ts, http.MethodGet, "/api/snapshots", "pub_test", nil)
	defer resp.Body.Close()
	var snaps []domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		t.Fatalf("decode snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("want 2 snapshots, got %d", len(snaps))
	}
}

func TestMuteWindows_AddListDelete(t *testing.T) {
	store := memory.New()
	ts := httptest.NewServer(setupRouter(t, store))
	defer ts.Close()

	// 1) Public key cannot write
	body := []byte(`{"match":"^web\\|","from":"2026-10-12T09:00:00Z","to":"2026-10-12T11:00:00Z","reason":"deploy"}`)
	resp := do(t, ts, http.MethodPost, "/api/mute-windows", "pub_test", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("public key: want 403, got %d", resp.StatusCode)
	}

	// 2) Add OK
	resp = do(t, ts, http.MethodPost, "/api/mute-windows", "adm_test", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var created domain.DynamicMuteWindow
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Reason != "deploy" || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected window %+v", created)
	}

	// 3) Listed
	list, _ := store.MuteWindows(context.Background())
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list=%+v", list)
	}

	// 4) Delete, then 404
	resp = do(t, ts, http.MethodDelete, "/api/mute-windows/"+created.ID, "adm_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("want 204, got %d", resp.StatusCode)
	}
	resp = do(t, ts, http.MethodDelete, "/api/mute-windows/"+created.ID, "adm_test", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestMuteWindows_RejectsInvalid(t *testing.T) {
	ts := httptest.NewServer(setupRouter(t, memory.New()))
	defer ts.Close()

	cases := map[string]string{
		"bad json":     `{`,
		"to not after": `{"from":"2026-10-12T11:00:00Z","to":"2026-10-12T11:00:00Z"}`,
		"bad regex":    `{"match":"(","from":"2026-10-12T09:00:00Z","to":"2026-10-12T11:00:00Z"}`,
	}
	for name, body := range cases {
		resp := do(t, ts, http.MethodPost, "/api/mute-windows", "adm_test", []byte(body))
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: want 400, got %d", name, resp.StatusCode)
		}
	}
}
