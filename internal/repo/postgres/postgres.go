package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- LogStore ----

func (s *Store) Logs(ctx context.Context) ([]domain.MonitorLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, date, type, label, identifier, success, result_msg
		   FROM monitor_logs
		  ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []domain.MonitorLog
	for rows.Next() {
		var l domain.MonitorLog
		if err := rows.Scan(&l.ID, &l.Date, &l.Type, &l.Label, &l.Identifier, &l.Success, &l.ResultMsg); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
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
	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(
			`INSERT INTO monitor_logs (date, type, label, identifier, success, result_msg)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			l.Date.UTC(), l.Type, l.Label, l.Identifier, l.Success, l.ResultMsg,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert logs: %w", err)
	}
	return nil
}

// ---- SnapshotStore ----

func (s *Store) Snapshots(ctx context.Context) ([]domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, label, identifier, last_result, success, date, alert_config
		   FROM snapshots
		  ORDER BY type, label, identifier`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var (
			snap domain.Snapshot
			raw  *string
		)
		if err := rows.Scan(&snap.Type, &snap.Label, &snap.Identifier, &snap.LastResult, &snap.Success, &snap.Date, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if raw != nil {
			cfg, err := domain.DecodeAlertConfiguration([]byte(*raw))
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", snap.Key(), err)
			}
			snap.Alert = cfg
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *Store) MutateAndPersistSnapshotState(ctx context.Context, snapshots []domain.Snapshot, logIDs []int64) error {
	if err := repo.CheckUniqueSnapshots(snapshots); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(logIDs) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM monitor_logs WHERE id = ANY($1)`, logIDs); err != nil {
			return fmt.Errorf("delete logs: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("truncate snapshots: %w", err)
	}
	for _, snap := range snapshots {
		raw, err := encodeAlert(snap.Alert)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO snapshots (type, label, identifier, last_result, success, date, alert_config)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			snap.Type, snap.Label, snap.Identifier, snap.LastResult, snap.Success, snap.Date.UTC(), raw,
		); err != nil {
			return fmt.Errorf("insert snapshot %s: %w", snap.Key(), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func encodeAlert(cfg *domain.AlertConfiguration) (*string, error) {
	if cfg == nil {
		return nil, nil
	}
	b, err := domain.EncodeAlertConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode alert config: %w", err)
	}
	str := string(b)
	return &str, nil
}

// ---- MuteWindowStore ----

func (s *Store) MuteWindows(ctx context.Context) ([]domain.DynamicMuteWindow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, pattern, from_at, to_at, reason, created_at
		   FROM mute_windows
		  ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list mute windows: %w", err)
	}
	defer rows.Close()

	var out []domain.DynamicMuteWindow
	for rows.Next() {
		var w domain.DynamicMuteWindow
		if err := rows.Scan(&w.ID, &w.Match, &w.From, &w.To, &w.Reason, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mute window: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) AddMuteWindow(ctx context.Context, w *domain.DynamicMuteWindow) error {
	repo.PrepareMuteWindow(w)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mute_windows (id, pattern, from_at, to_at, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.Match, w.From.UTC(), w.To.UTC(), w.Reason, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mute window: %w", err)
	}
	return nil
}

func (s *Store) DeleteMuteWindow(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mute_windows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete mute window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func decodeJSON(raw string, v any, what string) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
