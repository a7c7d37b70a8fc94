package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/dbx"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// SQLiteRepository stores the outbox in the same local database as the
// cache collections, so a capture and its cache write share durability.
type SQLiteRepository struct {
	db dbx.DBTX

	// now is replaceable in tests to pin temp ids and timestamps.
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, kind models.Kind, payload models.Document) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", common.ErrValidation, kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing payload: %w", err)
	}

	now := r.now()
	tempID := models.NewTempID(kind, now)
	query := `INSERT INTO outbox (temp_id, kind, payload, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, tempID, string(kind), string(raw), now.UnixMilli()); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrOfflineQueueFailed, err)
	}
	return tempID, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context, kind models.Kind) ([]models.OutboxRecord, error) {
	query := `SELECT temp_id, kind, payload, created_at, synced, attempts, last_error, last_attempt_at
		FROM outbox WHERE kind = ? AND synced = 0 ORDER BY created_at, temp_id`
	rows, err := r.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to select pending records: %w", err)
	}
	defer rows.Close()

	var result []models.OutboxRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE synced = 0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, tempID string) (models.OutboxRecord, error) {
	query := `SELECT temp_id, kind, payload, created_at, synced, attempts, last_error, last_attempt_at
		FROM outbox WHERE temp_id = ?`
	row := r.db.QueryRowContext(ctx, query, tempID)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OutboxRecord{}, fmt.Errorf("%w: outbox[%s]", common.ErrNotFound, tempID)
	}
	return rec, err
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, tempID string) error {
	return r.update(ctx, tempID, `UPDATE outbox SET synced = 1 WHERE temp_id = ?`, tempID)
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, tempID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	query := `UPDATE outbox SET attempts = attempts + 1, last_error = ?, last_attempt_at = ? WHERE temp_id = ?`
	return r.update(ctx, tempID, query, msg, r.now().UnixMilli(), tempID)
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, tempID string, payload models.Document) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializing payload: %w", err)
	}
	return r.update(ctx, tempID, `UPDATE outbox SET payload = ? WHERE temp_id = ?`, string(raw), tempID)
}

func (r *SQLiteRepository) PurgeSynced(ctx context.Context, kind models.Kind) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE kind = ? AND synced = 1`, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *SQLiteRepository) update(ctx context.Context, tempID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox[%s]: %w", tempID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: outbox[%s]", common.ErrNotFound, tempID)
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (models.OutboxRecord, error) {
	var (
		rec     models.OutboxRecord
		kind    string
		raw     string
		syncedN int
	)
	err := scan(&rec.TempID, &kind, &raw, &rec.CreatedAt, &syncedN, &rec.Attempts, &rec.LastError, &rec.LastAttemptAt)
	if err != nil {
		return models.OutboxRecord{}, err
	}
	rec.Kind = models.Kind(kind)
	rec.Synced = syncedN != 0
	if err := json.Unmarshal([]byte(raw), &rec.Payload); err != nil {
		return models.OutboxRecord{}, fmt.Errorf("deserializing payload of %s: %w", rec.TempID, err)
	}
	return rec, nil
}
