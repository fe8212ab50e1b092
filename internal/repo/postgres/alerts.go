package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hamed0406/watchdog/internal/domain"
	"github.com/hamed0406/watchdog/internal/repo"
)

func (s *Store) Alerts(ctx context.Context) ([]*domain.AlertState, error) {
	const q = `SELECT channel, start_date, last_alert_date, affected, state, resolved
	             FROM alert_states
	            ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []*domain.AlertState
	for rows.Next() {
		var (
			a             domain.AlertState
			lastSent      *time.Time
			affected, cor string
		)
		if err := rows.Scan(&a.Channel, &a.StartDate, &lastSent, &affected, &cor, &a.Resolved); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.LastAlertDate = lastSent
		a.Affected = domain.NewAffected()
		if err := decodeJSON(affected, a.Affected, "affected"); err != nil {
			return nil, err
		}
		if err := decodeJSON(cor, &a.State, "alert state"); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// PersistAlerts replaces the table inside one transaction.
func (s *Store) PersistAlerts(ctx context.Context, alerts []*domain.AlertState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM alert_states`); err != nil {
		return fmt.Errorf("truncate alerts: %w", err)
	}
	for _, a := range repo.Persistable(alerts) {
		affected, err := json.Marshal(a.Affected)
		if err != nil {
			return fmt.Errorf("encode affected: %w", err)
		}
		cor, err := json.Marshal(a.State)
		if err != nil {
			return fmt.Errorf("encode alert state: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO alert_states (channel, start_date, last_alert_date, affected, state, resolved)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.Channel, a.StartDate.UTC(), a.LastAlertDate, string(affected), string(cor), a.Resolved,
		); err != nil {
			return fmt.Errorf("insert alert %s: %w", a.Channel, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
