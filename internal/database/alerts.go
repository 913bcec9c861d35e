package database

import (
	"context"
	"fmt"

	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// UnhandledAlerts returns unhandled alerts, newest first.
func (s *Store) UnhandledAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	query := `
		SELECT id, record_id, level, alert_type, message, handled, raised_at
		FROM alert_log
		WHERE NOT handled
		ORDER BY raised_at DESC, id DESC
		LIMIT $1
	`
	rows, err := Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var a types.Alert
		err := rows.Scan(&a.ID, &a.RecordID, &a.Level, &a.AlertType, &a.Message, &a.Handled, &a.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkHandled resolves an alert.
func (s *Store) MarkHandled(ctx context.Context, alertID int64) error {
	tag, err := Pool().Exec(ctx, `UPDATE alert_log SET handled = TRUE WHERE id = $1`, alertID)
	if err != nil {
		return fmt.Errorf("error marking alert handled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
