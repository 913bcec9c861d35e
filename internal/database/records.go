package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/patrolworks/inspection-service/internal/store"
	"github.com/patrolworks/inspection-service/internal/types"
)

const recordColumns = `id, task_id, task_type, station_id, image_ref, result, status, confidence, processing_time, recorded_at`

func scanRecord(row pgx.Row) (*types.TaskRecord, error) {
	var (
		r        types.TaskRecord
		imageRef *string
		raw      []byte
	)
	err := row.Scan(
		&r.ID, &r.TaskID, &r.TaskType, &r.StationID, &imageRef,
		&raw, &r.Status, &r.Confidence, &r.ProcessingTime, &r.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if imageRef != nil {
		r.ImageRef = *imageRef
	}
	if len(raw) > 0 {
		// Variants are re-derived from the stored payload; the task type is
		// not part of the flat object.
		res, err := types.ParseResult(r.TaskType, json.RawMessage(raw))
		if err != nil {
			return nil, fmt.Errorf("error decoding stored result: %w", err)
		}
		r.Result = res
	}
	return &r, nil
}

// AppendRecord writes a record and, when alert is non-nil, its alert inside
// one transaction.
func (s *Store) AppendRecord(ctx context.Context, rec *types.TaskRecord, alert *types.Alert) (int64, int64, error) {
	tx, err := Pool().Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var resultJSON []byte
	if rec.Result != nil {
		resultJSON, err = json.Marshal(rec.Result)
		if err != nil {
			return 0, 0, fmt.Errorf("error encoding result: %w", err)
		}
	}

	var recordID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO task_records (task_id, task_type, station_id, image_ref, result, status, confidence, processing_time, recorded_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		RETURNING id
	`, rec.TaskID, rec.TaskType, rec.StationID, rec.ImageRef,
		resultJSON, rec.Status, rec.Confidence, rec.ProcessingTime, rec.Timestamp,
	).Scan(&recordID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to insert task record: %w", err)
	}

	var alertID int64
	if alert != nil {
		err = tx.QueryRow(ctx, `
			INSERT INTO alert_log (record_id, level, alert_type, message, handled, raised_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)
			RETURNING id
		`, recordID, alert.Level, alert.AlertType, alert.Message, alert.Timestamp,
		).Scan(&alertID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit record: %w", err)
	}

	rec.ID = recordID
	if alert != nil {
		alert.ID = alertID
		alert.RecordID = &recordID
	}
	return recordID, alertID, nil
}

// Records returns history entries matching the filter, newest first.
func (s *Store) Records(ctx context.Context, filter store.RecordFilter) ([]types.TaskRecord, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TaskType != 0 {
		conds = append(conds, "task_type = "+arg(filter.TaskType))
	}
	if filter.StationID != 0 {
		conds = append(conds, "station_id = "+arg(filter.StationID))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "recorded_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "recorded_at < "+arg(filter.Until))
	}

	query := fmt.Sprintf(`SELECT %s FROM task_records`, recordColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying task records: %w", err)
	}
	defer rows.Close()

	var records []types.TaskRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// LatestByStation returns the newest record for a station, optionally
// narrowed to one task type.
func (s *Store) LatestByStation(ctx context.Context, stationID int, taskType types.TaskType) (*types.TaskRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM task_records
		WHERE station_id = $1 AND ($2 = 0 OR task_type = $2)
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`, recordColumns)

	r, err := scanRecord(Pool().QueryRow(ctx, query, stationID, taskType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error querying latest record: %w", err)
	}
	return r, nil
}

// Statistics aggregates records since the given time.
func (s *Store) Statistics(ctx context.Context, since time.Time, taskType types.TaskType) (*types.Statistics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'normal'),
			COUNT(*) FILTER (WHERE status = 'warning'),
			COUNT(*) FILTER (WHERE status = 'danger'),
			AVG(confidence),
			AVG(processing_time)
		FROM task_records
		WHERE recorded_at >= $1 AND ($2 = 0 OR task_type = $2)
	`
	var stats types.Statistics
	err := Pool().QueryRow(ctx, query, since, taskType).Scan(
		&stats.TotalCount, &stats.NormalCount, &stats.WarningCount,
		&stats.DangerCount, &stats.AvgConfidence, &stats.AvgProcessingTime,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying statistics: %w", err)
	}
	return &stats, nil
}

// PruneRecords deletes records older than the cutoff.
func (s *Store) PruneRecords(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := Pool().Exec(ctx, `DELETE FROM task_records WHERE recorded_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("error pruning task records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
