// Package outbox implements the durable queue of pending mutations. Every
// record captured while the remote is unreachable lands here under a
// temporary id and stays until a sync pass confirms the server accepted it.
package outbox

import (
	"context"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// Repository is the persistence contract for pending mutations. Both the
// SQLite and the file-backed implementations guarantee FIFO order per kind
// (by enqueue time) and keep records across restarts.
type Repository interface {
	// Enqueue stores payload as a pending mutation of the given kind and
	// returns the generated temporary id.
	Enqueue(ctx context.Context, kind models.Kind, payload models.Document) (string, error)

	// Pending returns the unsynced records of a kind, oldest first.
	Pending(ctx context.Context, kind models.Kind) ([]models.OutboxRecord, error)

	// PendingCount returns the number of unsynced records across all kinds.
	PendingCount(ctx context.Context) (int, error)

	// Get returns the record stored under tempID, or common.ErrNotFound.
	Get(ctx context.Context, tempID string) (models.OutboxRecord, error)

	// MarkSynced flags the record as accepted by the server. Synced records
	// are never replayed again.
	MarkSynced(ctx context.Context, tempID string) error

	// RecordFailure increments the attempt counter and stores the error
	// text of the last failed replay. The record stays pending.
	RecordFailure(ctx context.Context, tempID string, cause error) error

	// UpdatePayload replaces the stored payload, used when a temporary
	// reference inside a pending record is rewritten to a permanent id.
	UpdatePayload(ctx context.Context, tempID string, payload models.Document) error

	// PurgeSynced deletes synced records of a kind and returns how many
	// were removed.
	PurgeSynced(ctx context.Context, kind models.Kind) (int, error)
}
