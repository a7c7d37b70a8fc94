package capture

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/cryptox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/outbox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/remote"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
)

type fakeRemote struct {
	mu           sync.Mutex
	nextID       int
	inserts      map[string][]models.Document
	insertErr    error
	collectCalls []models.Document
	collectErr   error
}

func (f *fakeRemote) Insert(ctx context.Context, table string, doc models.Document) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.nextID++
	row := doc.Clone()
	row["id"] = float64(f.nextID)
	if f.inserts == nil {
		f.inserts = make(map[string][]models.Document)
	}
	f.inserts[table] = append(f.inserts[table], row)
	return row, nil
}

func (f *fakeRemote) CollectAndRenew(ctx context.Context, args models.Document) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collectErr != nil {
		return nil, f.collectErr
	}
	f.collectCalls = append(f.collectCalls, args)
	return models.Document{"prestamo_id": float64(77)}, nil
}

type fakeReach struct{ up bool }

func (r *fakeReach) Validate(ctx context.Context, force bool) bool { return r.up }

type fixture struct {
	svc    *Service
	queue  *outbox.SQLiteRepository
	cache  *store.SQLiteStore
	remote *fakeRemote
	reach  *fakeReach
}

var testCollector = models.CollectorContext{PanelID: "panel-1", CollectorID: "col-7", UserID: "user-9"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fix := &fixture{
		queue:  outbox.NewSQLiteRepository(db),
		cache:  store.NewSQLiteStore(db),
		remote: &fakeRemote{},
		reach:  &fakeReach{up: true},
	}
	codec := cryptox.NewFieldCodec(cryptox.NewPassthrough(), logging.NewNop())
	fix.svc = NewService(fix.queue, fix.cache, fix.remote, codec, fix.reach, testCollector, logging.NewNop())
	return fix
}

func TestCreateClientOnline(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()

	result, err := fix.svc.CreateClient(ctx, models.ClientInput{Nombre: "Ana", Cedula: "123", Telefono: "555"})
	require.NoError(t, err)
	assert.False(t, result.Pending)
	assert.Equal(t, "1", result.ID)

	// server row was mirrored into the cache
	cached, err := fix.cache.Get(ctx, store.ClientsCache, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", cached["nombre"])

	n, err := fix.svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateClientOfflineQueues(t *testing.T) {
	fix := newFixture(t)
	fix.reach.up = false
	ctx := context.Background()

	result, err := fix.svc.CreateClient(ctx, models.ClientInput{Nombre: "Ana", Cedula: "123"})
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.True(t, models.IsTempID(result.ID))
	assert.Empty(t, fix.remote.inserts)

	pending, err := fix.queue.Pending(ctx, models.KindClient)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, result.ID, pending[0].TempID)

	// the capture is visible in the local list immediately
	cached, err := fix.cache.Get(ctx, store.ClientsCache, result.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", cached["nombre"])
}

func TestOnlineFailureFallsBackToQueue(t *testing.T) {
	fix := newFixture(t)
	fix.remote.insertErr = fmt.Errorf("%w: status 500", common.ErrRemoteWriteFailed)
	ctx := context.Background()

	result, err := fix.svc.RecordPayment(ctx, models.PaymentInput{
		PrestamoID: "7", Monto: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.True(t, models.IsTempID(result.ID))

	n, err := fix.svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTempReferenceNeverSentOnline(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()

	// client captured offline first
	fix.reach.up = false
	clientResult, err := fix.svc.CreateClient(ctx, models.ClientInput{Nombre: "Ana", Cedula: "123"})
	require.NoError(t, err)

	// back online, but the loan references the temporary client id
	fix.reach.up = true
	loanResult, err := fix.svc.CreateLoan(ctx, models.LoanInput{
		ClienteID:     clientResult.ID,
		MontoPrestado: decimal.NewFromInt(1000),
		CuotaDiaria:   decimal.NewFromInt(50),
		TotalDias:     24,
	})
	require.NoError(t, err)
	assert.True(t, loanResult.Pending)
	assert.Empty(t, fix.remote.inserts[remote.TablePrestamos])
}

func TestCollectAndRenewOnline(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()

	result, err := fix.svc.CollectAndRenew(ctx, models.CollectionInput{
		ClienteID:  "5",
		PrestamoID: "7",
		MontoPago:  decimal.NewFromInt(120),
		NuevoCredito: &models.LoanInput{
			MontoPrestado: decimal.NewFromInt(2000),
			CuotaDiaria:   decimal.NewFromInt(100),
			TotalDias:     24,
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pending)
	assert.Equal(t, "77", result.ID)

	require.Len(t, fix.remote.collectCalls, 1)
	args := fix.remote.collectCalls[0]
	assert.Equal(t, "7", args["p_prestamo_id"])
	assert.Equal(t, 120.0, args["p_monto_pago"])
	nested, ok := args["p_nuevo_credito"].(map[string]any)
	require.True(t, ok)
	// the renewal inherits the collection's client
	assert.Equal(t, "5", nested["cliente_id"])
}

func TestValidationRejectedBeforeAnyWrite(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()

	_, err := fix.svc.CreateClient(ctx, models.ClientInput{Nombre: "Ana"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = fix.svc.RecordPayment(ctx, models.PaymentInput{PrestamoID: "7"})
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, fix.remote.inserts)
	n, err := fix.svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadsDecryptCachedRows(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(context.Background(), dsn)
	require.NoError(t, err)
	defer db.Close()

	cipher, err := cryptox.NewCipher(make([]byte, cryptox.KeySize))
	require.NoError(t, err)
	codec := cryptox.NewFieldCodec(cipher, logging.NewNop())
	cache := store.NewSQLiteStore(db)
	svc := NewService(outbox.NewSQLiteRepository(db), cache, &fakeRemote{}, codec,
		&fakeReach{up: false}, testCollector, logging.NewNop())

	ctx := context.Background()
	enc := codec.EncryptEntity(ctx, models.Document{"id": "c-1", "nombre": "Ana", "cedula": "123"}, models.KindClient)
	require.NoError(t, cache.Put(ctx, store.ClientsCache, enc))

	clients, err := svc.Clients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Ana", clients[0]["nombre"])
}

func TestLoansByClient(t *testing.T) {
	fix := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fix.cache.Put(ctx, store.LoansCache, models.Document{"id": "l-1", "cliente_id": "c-1"}))
	require.NoError(t, fix.cache.Put(ctx, store.LoansCache, models.Document{"id": "l-2", "cliente_id": "c-2"}))

	loans, err := fix.svc.LoansByClient(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "l-1", loans[0]["id"])
}

func TestStats(t *testing.T) {
	fix := newFixture(t)
	fix.reach.up = false
	ctx := context.Background()

	_, err := fix.svc.CreateClient(ctx, models.ClientInput{Nombre: "Ana", Cedula: "123"})
	require.NoError(t, err)

	stats, err := fix.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats["outbox"])
	assert.Equal(t, 1, stats[store.ClientsCache])
	assert.Zero(t, stats[store.LoansCache])
}

var _ Remote = (*remote.Client)(nil)
