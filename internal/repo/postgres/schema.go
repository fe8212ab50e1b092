package postgres

import (
	"context"
	"fmt"
)

// Schema is applied by Migrate. JSON payloads are kept in TEXT columns and
// decoded in Go so both SQL adapters share one encoding.
const Schema = `
CREATE TABLE IF NOT EXISTS monitor_logs (
  id          BIGSERIAL PRIMARY KEY,
  date        TIMESTAMPTZ NOT NULL,
  type        TEXT NOT NULL,
  label       TEXT NOT NULL,
  identifier  TEXT NOT NULL,
  success     BOOLEAN NOT NULL,
  result_msg  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_monitor_logs_key ON monitor_logs (type, label, identifier);

CREATE TABLE IF NOT EXISTS snapshots (
  type          TEXT NOT NULL,
  label         TEXT NOT NULL,
  identifier    TEXT NOT NULL,
  last_result   TEXT NOT NULL,
  success       BOOLEAN NOT NULL,
  date          TIMESTAMPTZ NOT NULL,
  alert_config  TEXT NULL,
  PRIMARY KEY (type, label, identifier)
);

CREATE TABLE IF NOT EXISTS alert_states (
  id               BIGSERIAL PRIMARY KEY,
  channel          TEXT NOT NULL,
  start_date       TIMESTAMPTZ NOT NULL,
  last_alert_date  TIMESTAMPTZ NULL,
  affected         TEXT NOT NULL,
  state            TEXT NOT NULL,
  resolved         BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS mute_windows (
  id          TEXT PRIMARY KEY,
  pattern     TEXT NOT NULL DEFAULT '',
  from_at     TIMESTAMPTZ NOT NULL,
  to_at       TIMESTAMPTZ NOT NULL,
  reason      TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates missing tables. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
