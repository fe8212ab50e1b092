package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Timestamps are stored as RFC 3339 text in UTC.
const timeLayout = time.RFC3339Nano

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (or creates) the database at path and applies the schema.
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = "watchdog.db"
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer keeps transactions from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s := &Store{db: db, log: log}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS monitor_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			identifier TEXT NOT NULL,
			success INTEGER NOT NULL,
			result_msg TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monitor_logs_key ON monitor_logs(type, label, identifier)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			identifier TEXT NOT NULL,
			last_result TEXT NOT NULL,
			success INTEGER NOT NULL,
			date TEXT NOT NULL,
			alert_config TEXT,
			PRIMARY KEY (type, label, identifier)
		)`,
		`CREATE TABLE IF NOT EXISTS alert_states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel TEXT NOT NULL,
			start_date TEXT NOT NULL,
			last_alert_date TEXT,
			affected TEXT NOT NULL,
			state TEXT NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS mute_windows (
			id TEXT PRIMARY KEY,
			pattern TEXT NOT NULL DEFAULT '',
			from_at TEXT NOT NULL,
			to_at TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

// ---- LogStore ----

func (s *Store) Logs(ctx context.Context) ([]domain.MonitorLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, type, label, identifier, success, result_msg FROM monitor_logs ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []domain.MonitorLog
	for rows.Next() {
		var (
			l    domain.MonitorLog
			date string
		)
		if err := rows.Scan(&l.ID, &date, &l.Type, &l.Label, &l.Identifier, &l.Success, &l.ResultMsg); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if l.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) PersistResults(ctx context.Context, results []domain.Result) error {
	logs := repo.FailingLogs(results)
	if len(logs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO monitor_logs (date, type, label, identifier, success, result_msg) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare log insert: %w", err)
	}
	defer stmt.Close()
	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx, formatTime(l.Date), l.Type, l.Label, l.Identifier, l.Success, l.ResultMsg); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
	}
	return tx.Commit()
}

// ---- SnapshotStore ----

func (s *Store) Snapshots(ctx context.Context) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, label, identifier, last_result, success, date, alert_config
		FROM snapshots ORDER BY type, label, identifier`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var (
			snap domain.Snapshot
			date string
			raw  sql.NullString
		)
		if err := rows.Scan(&snap.Type, &snap.Label, &snap.Identifier, &snap.LastResult, &snap.Success, &date, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if raw.Valid {
			if snap.Alert, err = domain.DecodeAlertConfiguration([]byte(raw.String)); err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", snap.Key(), err)
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) MutateAndPersistSnapshotState(ctx context.Context, snapshots []domain.Snapshot, logIDs []int64) error {
	if err := repo.CheckUniqueSnapshots(snapshots); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(logIDs) > 0 {
		del, err := tx.PrepareContext(ctx, `DELETE FROM monitor_logs WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare log delete: %w", err)
		}
		defer del.Close()
		for _, id := range logIDs {
			if _, err := del.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("delete log %d: %w", id, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("truncate snapshots: %w", err)
	}
	ins, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshots (type, label, identifier, last_result, success, date, alert_config)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer ins.Close()
	for _, snap := range snapshots {
		var raw sql.NullString
		if snap.Alert != nil {
			b, err := domain.EncodeAlertConfiguration(snap.Alert)
			if err != nil {
				return fmt.Errorf("encode alert config: %w", err)
			}
			raw = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := ins.ExecContext(ctx, snap.Type, snap.Label, snap.Identifier, snap.LastResult, snap.Success, formatTime(snap.Date), raw); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.Key(), err)
		}
	}
	return tx.Commit()
}

// ---- AlertStore ----

func (s *Store) Alerts(ctx context.Context) ([]*domain.AlertState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, start_date, last_alert_date, affected, state, resolved FROM alert_states ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.AlertState
	for rows.Next() {
		var (
			a               domain.AlertState
			start           string
			last            sql.NullString
			affected, state string
		)
		if err := rows.Scan(&a.Channel, &start, &last, &affected, &state, &a.Resolved); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if a.StartDate, err = parseTime(start); err != nil {
			return nil, err
		}
		if last.Valid {
			t, err := parseTime(last.String)
			if err != nil {
				return nil, err
			}
			a.LastAlertDate = &t
		}
		a.Affected = domain.NewAffected()
		if err := json.Unmarshal([]byte(affected), a.Affected); err != nil {
			return nil, fmt.Errorf("decode affected: %w", err)
		}
		if err := json.Unmarshal([]byte(state), &a.State); err != nil {
			return nil, fmt.Errorf("decode alert state: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) PersistAlerts(ctx context.Context, alerts []*domain.AlertState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alert_states`); err != nil {
		return fmt.Errorf("truncate alerts: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO alert_states (channel, start_date, last_alert_date, affected, state, resolved)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare alert insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range repo.Persistable(alerts) {
		affected, err := json.Marshal(a.Affected)
		if err != nil {
			return fmt.Errorf("encode affected: %w", err)
		}
		state, err := json.Marshal(a.State)
		if err != nil {
			return fmt.Errorf("encode alert state: %w", err)
		}
		var last sql.NullString
		if a.LastAlertDate != nil {
			last = sql.NullString{String: formatTime(*a.LastAlertDate), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, a.Channel, formatTime(a.StartDate), last, string(affected), string(state), a.Resolved); err != nil {
			return fmt.Errorf("insert alert %s: %w", a.Channel, err)
		}
	}
	return tx.Commit()
}

// ---- MuteWindowStore ----

func (s *Store) MuteWindows(ctx context.Context) ([]domain.DynamicMuteWindow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pattern, from_at, to_at, reason, created_at FROM mute_windows ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list mute windows: %w", err)
	}
	defer rows.Close()

	var out []domain.DynamicMuteWindow
	for rows.Next() {
		var (
			w                   domain.DynamicMuteWindow
			from, to, createdAt string
		)
		if err := rows.Scan(&w.ID, &w.Match, &from, &to, &w.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan mute window: %w", err)
		}
		if w.From, err = parseTime(from); err != nil {
			return nil, err
		}
		if w.To, err = parseTime(to); err != nil {
			return nil, err
		}
		if w.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) AddMuteWindow(ctx context.Context, w *domain.DynamicMuteWindow) error {
	repo.PrepareMuteWindow(w)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mute_windows (id, pattern, from_at, to_at, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.Match, formatTime(w.From), formatTime(w.To), w.Reason, formatTime(w.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert mute window: %w", err)
	}
	return nil
}

func (s *Store) DeleteMuteWindow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mute_windows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mute window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete mute window: %w", err)
	}
	if n == 0 {
		return repo.ErrNotFound
	}
	return nil
}
