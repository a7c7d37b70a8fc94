package outbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteRepository(db)
}

func newFileRepo(t *testing.T) *FileRepository {
	t.Helper()
	r, err := OpenFileRepository(filepath.Join(t.TempDir(), "outbox.json"))
	require.NoError(t, err)
	return r
}

// repos lets every contract test run against both implementations.
func repos(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"sqlite": newSQLiteRepo(t),
		"file":   newFileRepo(t),
	}
}

func TestEnqueueAppearsPendingExactlyOnce(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			payload := models.Document{"monto": 50.0, "idempotency_key": "col-1-l-1-1700000000000"}

			tempID, err := repo.Enqueue(ctx, models.KindPayment, payload)
			require.NoError(t, err)
			assert.True(t, models.IsTempID(tempID))

			pending, err := repo.Pending(ctx, models.KindPayment)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, tempID, pending[0].TempID)
			assert.Equal(t, models.KindPayment, pending[0].Kind)
			assert.Equal(t, payload, pending[0].Payload)
			assert.False(t, pending[0].Synced)
			assert.Zero(t, pending[0].Attempts)

			// other kinds see nothing
			other, err := repo.Pending(ctx, models.KindClient)
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Enqueue(context.Background(), models.Kind("invoice"), models.Document{})
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestPendingFIFOOrder(t *testing.T) {
	ctx := context.Background()

	repo := newSQLiteRepo(t)
	base := time.UnixMilli(1700000000000)
	step := 0
	repo.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	first, err := repo.Enqueue(ctx, models.KindClient, models.Document{"nombre": "A"})
	require.NoError(t, err)
	second, err := repo.Enqueue(ctx, models.KindClient, models.Document{"nombre": "B"})
	require.NoError(t, err)
	third, err := repo.Enqueue(ctx, models.KindClient, models.Document{"nombre": "C"})
	require.NoError(t, err)

	pending, err := repo.Pending(ctx, models.KindClient)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{first, second, third},
		[]string{pending[0].TempID, pending[1].TempID, pending[2].TempID})
}

func TestMarkSyncedExcludesFromPending(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tempID, err := repo.Enqueue(ctx, models.KindLoan, models.Document{"monto_prestado": "1000"})
			require.NoError(t, err)
			require.NoError(t, repo.MarkSynced(ctx, tempID))

			pending, err := repo.Pending(ctx, models.KindLoan)
			require.NoError(t, err)
			assert.Empty(t, pending)

			// the record still exists until purged
			rec, err := repo.Get(ctx, tempID)
			require.NoError(t, err)
			assert.True(t, rec.Synced)
		})
	}
}

func TestRecordFailureOnlyIncreasesAttempts(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tempID, err := repo.Enqueue(ctx, models.KindPayment, models.Document{"monto": 10.0})
			require.NoError(t, err)

			require.NoError(t, repo.RecordFailure(ctx, tempID, errors.New("connection reset")))
			require.NoError(t, repo.RecordFailure(ctx, tempID, errors.New("timeout")))

			rec, err := repo.Get(ctx, tempID)
			require.NoError(t, err)
			assert.Equal(t, 2, rec.Attempts)
			assert.Equal(t, "timeout", rec.LastError)
			assert.NotZero(t, rec.LastAttemptAt)
			assert.False(t, rec.Synced)
		})
	}
}

func TestUpdatePayloadRewritesStoredRecord(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			tempID, err := repo.Enqueue(ctx, models.KindLoan, models.Document{"cliente_id": "offline_client_1_x"})
			require.NoError(t, err)

			require.NoError(t, repo.UpdatePayload(ctx, tempID, models.Document{"cliente_id": float64(42)}))

			rec, err := repo.Get(ctx, tempID)
			require.NoError(t, err)
			assert.Equal(t, float64(42), rec.Payload["cliente_id"])
		})
	}
}

func TestPurgeSyncedLeavesPendingIntact(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			synced, err := repo.Enqueue(ctx, models.KindPayment, models.Document{"monto": 1.0})
			require.NoError(t, err)
			pending, err := repo.Enqueue(ctx, models.KindPayment, models.Document{"monto": 2.0})
			require.NoError(t, err)
			otherKind, err := repo.Enqueue(ctx, models.KindClient, models.Document{"nombre": "A"})
			require.NoError(t, err)
			require.NoError(t, repo.MarkSynced(ctx, synced))
			require.NoError(t, repo.MarkSynced(ctx, otherKind))

			n, err := repo.PurgeSynced(ctx, models.KindPayment)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = repo.Get(ctx, synced)
			assert.ErrorIs(t, err, common.ErrNotFound)
			_, err = repo.Get(ctx, pending)
			assert.NoError(t, err)
			// other kinds are untouched by a per-kind purge
			_, err = repo.Get(ctx, otherKind)
			assert.NoError(t, err)
		})
	}
}

func TestPendingCountSpansKinds(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.Enqueue(ctx, models.KindClient, models.Document{"nombre": "A"})
			require.NoError(t, err)
			id, err := repo.Enqueue(ctx, models.KindPayment, models.Document{"monto": 5.0})
			require.NoError(t, err)

			n, err := repo.PendingCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			require.NoError(t, repo.MarkSynced(ctx, id))
			n, err = repo.PendingCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestMutationsOnMissingRecord(t *testing.T) {
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			assert.ErrorIs(t, repo.MarkSynced(ctx, "offline_payment_1_missing"), common.ErrNotFound)
			assert.ErrorIs(t, repo.RecordFailure(ctx, "offline_payment_1_missing", errors.New("x")), common.ErrNotFound)
			assert.ErrorIs(t, repo.UpdatePayload(ctx, "offline_payment_1_missing", models.Document{}), common.ErrNotFound)
		})
	}
}

func TestFileRepositorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.json")
	ctx := context.Background()

	repo, err := OpenFileRepository(path)
	require.NoError(t, err)
	tempID, err := repo.Enqueue(ctx, models.KindPayment, models.Document{"monto": 25.5})
	require.NoError(t, err)
	require.NoError(t, repo.RecordFailure(ctx, tempID, errors.New("offline")))

	reopened, err := OpenFileRepository(path)
	require.NoError(t, err)
	rec, err := reopened.Get(ctx, tempID)
	require.NoError(t, err)
	assert.Equal(t, models.KindPayment, rec.Kind)
	assert.Equal(t, 25.5, rec.Payload["monto"])
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, "offline", rec.LastError)
}
