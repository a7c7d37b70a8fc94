package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// FileRepository is the fallback outbox used when the local database is
// unavailable. Records live in one JSON file rewritten on every mutation;
// slower and less robust than SQLite, but captures are never dropped just
// because the database failed to open.
type FileRepository struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	records map[string]*fileRecord
}

type fileRecord struct {
	TempID        string          `json:"temp_id"`
	Kind          models.Kind     `json:"kind"`
	Payload       models.Document `json:"payload"`
	CreatedAt     int64           `json:"created_at"`
	Synced        bool            `json:"synced"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	LastAttemptAt int64           `json:"last_attempt_at,omitempty"`
}

// OpenFileRepository loads the fallback outbox at path, creating it when
// absent.
func OpenFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{path: path, now: time.Now, records: make(map[string]*fileRecord)}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrOfflineQueueFailed, err)
	}
	var list []*fileRecord
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("%w: corrupt outbox file: %v", common.ErrOfflineQueueFailed, err)
	}
	for _, rec := range list {
		r.records[rec.TempID] = rec
	}
	return r, nil
}

func (r *FileRepository) Enqueue(ctx context.Context, kind models.Kind, payload models.Document) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", common.ErrValidation, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	tempID := models.NewTempID(kind, now)
	r.records[tempID] = &fileRecord{
		TempID:    tempID,
		Kind:      kind,
		Payload:   payload.Clone(),
		CreatedAt: now.UnixMilli(),
	}
	if err := r.persistLocked(); err != nil {
		delete(r.records, tempID)
		return "", err
	}
	return tempID, nil
}

func (r *FileRepository) Pending(ctx context.Context, kind models.Kind) ([]models.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []models.OutboxRecord
	for _, rec := range r.records {
		if rec.Kind == kind && !rec.Synced {
			result = append(result, toRecord(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].TempID < result[j].TempID
	})
	return result, nil
}

func (r *FileRepository) PendingCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rec := range r.records {
		if !rec.Synced {
			n++
		}
	}
	return n, nil
}

func (r *FileRepository) Get(ctx context.Context, tempID string) (models.OutboxRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[tempID]
	if !ok {
		return models.OutboxRecord{}, fmt.Errorf("%w: outbox[%s]", common.ErrNotFound, tempID)
	}
	return toRecord(rec), nil
}

func (r *FileRepository) MarkSynced(ctx context.Context, tempID string) error {
	return r.mutate(tempID, func(rec *fileRecord) {
		rec.Synced = true
	})
}

func (r *FileRepository) RecordFailure(ctx context.Context, tempID string, cause error) error {
	return r.mutate(tempID, func(rec *fileRecord) {
		rec.Attempts++
		rec.LastAttemptAt = r.now().UnixMilli()
		if cause != nil {
			rec.LastError = cause.Error()
		}
	})
}

func (r *FileRepository) UpdatePayload(ctx context.Context, tempID string, payload models.Document) error {
	return r.mutate(tempID, func(rec *fileRecord) {
		rec.Payload = payload.Clone()
	})
}

func (r *FileRepository) PurgeSynced(ctx context.Context, kind models.Kind) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, rec := range r.records {
		if rec.Kind == kind && rec.Synced {
			delete(r.records, id)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := r.persistLocked(); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *FileRepository) mutate(tempID string, fn func(*fileRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[tempID]
	if !ok {
		return fmt.Errorf("%w: outbox[%s]", common.ErrNotFound, tempID)
	}
	fn(rec)
	return r.persistLocked()
}

func (r *FileRepository) persistLocked() error {
	list := make([]*fileRecord, 0, len(r.records))
	for _, rec := range r.records {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].TempID < list[j].TempID })

	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("serializing outbox: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", common.ErrOfflineQueueFailed, err)
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrOfflineQueueFailed, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: %v", common.ErrOfflineQueueFailed, err)
	}
	return nil
}

func toRecord(rec *fileRecord) models.OutboxRecord {
	return models.OutboxRecord{
		TempID:        rec.TempID,
		Kind:          rec.Kind,
		Payload:       rec.Payload.Clone(),
		CreatedAt:     rec.CreatedAt,
		Synced:        rec.Synced,
		Attempts:      rec.Attempts,
		LastError:     rec.LastError,
		LastAttemptAt: rec.LastAttemptAt,
	}
}
