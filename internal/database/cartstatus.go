package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

// SetCartStatus replaces the singleton snapshot row.
func (s *Store) SetCartStatus(ctx context.Context, status *types.CartStatus) error {
	query := `
		INSERT INTO cart_status (id, online, current_station, mode, battery_level, last_activity, updated_at)
		VALUES (1, $1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT (id) DO UPDATE SET
			online = EXCLUDED.online,
			current_station = EXCLUDED.current_station,
			mode = EXCLUDED.mode,
			battery_level = EXCLUDED.battery_level,
			last_activity = EXCLUDED.last_activity,
			updated_at = EXCLUDED.updated_at
	`
	_, err := Pool().Exec(ctx, query,
		status.Online, status.CurrentStation, status.Mode,
		status.BatteryLevel, status.LastActivity, status.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("error upserting cart status: %w", err)
	}
	return nil
}

// CartStatus returns the current snapshot, or ErrNotFound before the first
// report.
func (s *Store) CartStatus(ctx context.Context) (*types.CartStatus, error) {
	query := `
		SELECT online, current_station, mode, battery_level, last_activity, updated_at
		FROM cart_status WHERE id = 1
	`
	var (
		cs           types.CartStatus
		lastActivity *string
	)
	err := Pool().QueryRow(ctx, query).Scan(
		&cs.Online, &cs.CurrentStation, &cs.Mode, &cs.BatteryLevel, &lastActivity, &cs.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error querying cart status: %w", err)
	}
	if lastActivity != nil {
		cs.LastActivity = *lastActivity
	}
	return &cs, nil
}
