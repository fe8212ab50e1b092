package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/digest"
	"github.com/hamed0406/watchdog/internal/domain"
	apimw "github.com/hamed0406/watchdog/internal/httpapi/middleware"
	"github.com/hamed0406/watchdog/internal/repo"
)

// Store is what the dashboard reads and the admin routes write.
type Store interface {
	repo.SnapshotStore
	repo.AlertStore
	repo.MuteWindowStore
}

type Server struct {
	Logger *zap.Logger
	Store  Store

	mu     sync.RWMutex
	title  string
	static []domain.MuteWindow
	tc     domain.TimeContext
}

func NewServer(l *zap.Logger, store Store, title string, static []domain.MuteWindow, tc domain.TimeContext) *Server {
	return &Server{Logger: l, Store: store, title: title, static: static, tc: tc}
}

// Update replaces the configuration-derived view settings after a reload.
func (s *Server) Update(title string, static []domain.MuteWindow, tc domain.TimeContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title, s.static, s.tc = title, static, tc
}

func (s *Server) view() (string, []domain.MuteWindow, domain.TimeContext) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title, s.static, s.tc
}

// Router wires the dashboard routes. Reads need a public or admin key,
// mute window changes need an admin key. No configured keys means open
// access.
func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, publicRPM, publicBurst, adminRPM, adminBurst int) http.Handler {
	r := chi.NewRouter()
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAny(keys))
		r.Use(apimw.RateLimit(publicRPM, publicBurst))
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/alerts", s.handleAlerts)
		r.Get("/api/snapshots", s.handleSnapshots)
		r.Get("/api/mute-windows", s.handleListMuteWindows)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Use(apimw.RateLimit(adminRPM, adminBurst))
		r.Post("/api/mute-windows", s.handleAddMuteWindow)
		r.Delete("/api/mute-windows/{id}", s.handleDeleteMuteWindow)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alerts, err := s.Store.Alerts(ctx)
	if err != nil {
		s.fail(w, "status_alerts_error", err)
		return
	}
	snapshots, err := s.Store.Snapshots(ctx)
	if err != nil {
		s.fail(w, "status_snapshots_error", err)
		return
	}
	dynamic, err := s.Store.MuteWindows(ctx)
	if err != nil {
		s.fail(w, "status_mute_windows_error", err)
		return
	}
	title, static, tc := s.view()
	mutes := domain.ActiveMuteWindows(static, dynamic, tc)
	writeJSON(w, http.StatusOK, digest.BuildStatus(title, alerts, snapshots, mutes, tc))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.Store.Alerts(r.Context())
	if err != nil {
		s.fail(w, "list_alerts_error", err)
		return
	}
	if alerts == nil {
		alerts = []*domain.AlertState{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.Store.Snapshots(r.Context())
	if err != nil {
		s.fail(w, "list_snapshots_error", err)
		return
	}
	if snapshots == nil {
		snapshots = []domain.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleListMuteWindows(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Store.MuteWindows(r.Context())
	if err != nil {
		s.fail(w, "list_mute_windows_error", err)
		return
	}
	if ws == nil {
		ws = []domain.DynamicMuteWindow{}
	}
	writeJSON(w, http.StatusOK, ws)
}

type mutePayload struct {
	Match  string    `json:"match"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Reason string    `json:"reason"`
}

func (s *Server) handleAddMuteWindow(w http.ResponseWriter, r *http.Request) {
	var p mutePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	mw := &domain.DynamicMuteWindow{
		Match:  strings.TrimSpace(p.Match),
		From:   p.From.UTC(),
		To:     p.To.UTC(),
		Reason: strings.TrimSpace(p.Reason),
	}
	if err := mw.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.AddMuteWindow(r.Context(), mw); err != nil {
		s.fail(w, "add_mute_window_error", err)
		return
	}

	s.Logger.Info("added_mute_window",
		zap.String("id", mw.ID),
		zap.String("match", mw.Match),
		zap.Time("from", mw.From),
		zap.Time("to", mw.To),
	)
	writeJSON(w, http.StatusCreated, mw)
}

func (s *Server) handleDeleteMuteWindow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.Store.DeleteMuteWindow(r.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "mute window not found")
		return
	case err != nil:
		s.fail(w, "delete_mute_window_error", err)
		return
	}
	s.Logger.Info("deleted_mute_window", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, event string, err error) {
	s.Logger.Warn(event, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
