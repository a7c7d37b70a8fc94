// Package capture is the write and read path behind the UI: new clients,
// loans, payments and collections. Writes are online-first; when the
// backend cannot be reached, or the write fails in flight, the mutation is
// queued in the outbox under a temporary id and the UI carries on.
package capture

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/cryptox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/outbox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/remote"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
)

// Remote is the subset of the backend client the capture path uses.
type Remote interface {
	Insert(ctx context.Context, table string, doc models.Document) (models.Document, error)
	CollectAndRenew(ctx context.Context, args models.Document) (models.Document, error)
}

// Reachability answers whether the backend can be reached; capture uses the
// cached probe result rather than forcing a fresh probe on every keystroke.
type Reachability interface {
	Validate(ctx context.Context, force bool) bool
}

// Result is the outcome of a capture.
type Result struct {
	// ID is the permanent server id when the write went through online,
	// or the temporary id when it was queued.
	ID string

	// Pending is true when the mutation sits in the outbox awaiting sync.
	Pending bool
}

// Service implements the capture operations.
type Service struct {
	queue     outbox.Repository
	cache     store.Store
	remote    Remote
	codec     *cryptox.FieldCodec
	reach     Reachability
	collector models.CollectorContext
	log       logging.Logger

	now func() time.Time
}

func NewService(queue outbox.Repository, cache store.Store, rem Remote, codec *cryptox.FieldCodec,
	reach Reachability, collector models.CollectorContext, log logging.Logger) *Service {
	return &Service{
		queue:     queue,
		cache:     cache,
		remote:    rem,
		codec:     codec,
		reach:     reach,
		collector: collector,
		log:       log,
		now:       time.Now,
	}
}

// CreateClient registers a new client.
func (s *Service) CreateClient(ctx context.Context, in models.ClientInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return s.capture(ctx, models.KindClient, in.Document(s.collector, s.now()))
}

// CreateLoan opens a new loan for an existing client. The client may still
// be pending sync; its temporary id is accepted and resolved later.
func (s *Service) CreateLoan(ctx context.Context, in models.LoanInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return s.capture(ctx, models.KindLoan, in.Document(s.collector, s.now()))
}

// RecordPayment records a daily installment against a loan.
func (s *Service) RecordPayment(ctx context.Context, in models.PaymentInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return s.capture(ctx, models.KindPayment, in.Document(s.collector, s.now()))
}

// CollectAndRenew settles a loan and optionally opens its replacement in
// one operation.
func (s *Service) CollectAndRenew(ctx context.Context, in models.CollectionInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	return s.capture(ctx, models.KindCollection, in.Document(s.collector, s.now()))
}

// capture tries the backend first when it looks reachable; any online
// failure falls back to the outbox. A record referencing a temporary id is
// never sent online, it goes straight to the queue.
func (s *Service) capture(ctx context.Context, kind models.Kind, doc models.Document) (Result, error) {
	if s.reach.Validate(ctx, false) && !referencesTempID(doc) {
		result, err := s.send(ctx, kind, doc)
		if err == nil {
			return result, nil
		}
		s.log.Warn(ctx, "online capture failed, queueing offline", "kind", kind, "error", err)
	}
	return s.enqueue(ctx, kind, doc)
}

func (s *Service) send(ctx context.Context, kind models.Kind, doc models.Document) (Result, error) {
	switch kind {
	case models.KindCollection:
		args := models.Document{
			"p_prestamo_id":     doc["prestamo_id"],
			"p_cliente_id":      doc["cliente_id"],
			"p_cobrador_id":     doc["cobrador_id"],
			"p_panel_id":        doc["panel_id"],
			"p_monto_pago":      doc["monto_pago"],
			"p_fecha_pago":      doc["fecha_pago"],
			"p_hora_pago":       doc["hora_pago"],
			"p_idempotency_key": doc["idempotency_key"],
		}
		if nested, ok := doc["nuevo_credito"]; ok {
			args["p_nuevo_credito"] = nested
		}
		result, err := s.remote.CollectAndRenew(ctx, args)
		if err != nil {
			return Result{}, err
		}
		return Result{ID: stringID(result["prestamo_id"])}, nil
	default:
		row, err := s.remote.Insert(ctx, tableFor(kind), doc)
		if err != nil {
			return Result{}, err
		}
		s.cacheRow(ctx, kind, row)
		return Result{ID: stringID(row["id"])}, nil
	}
}

func (s *Service) enqueue(ctx context.Context, kind models.Kind, doc models.Document) (Result, error) {
	enc := s.codec.EncryptEntity(ctx, doc, kind)
	tempID, err := s.queue.Enqueue(ctx, kind, enc)
	if err != nil {
		return Result{}, err
	}

	// mirror the capture into the local cache under the temporary id so
	// lists show it immediately
	if collection := cacheFor(kind); collection != "" {
		cached := enc.Clone()
		cached["id"] = tempID
		if err := s.cache.Put(ctx, collection, cached); err != nil {
			s.log.Error(ctx, "caching queued capture failed", "kind", kind, "error", err)
		}
	}
	s.log.Info(ctx, "capture queued offline", "kind", kind, "temp_id", tempID)
	return Result{ID: tempID, Pending: true}, nil
}

func (s *Service) cacheRow(ctx context.Context, kind models.Kind, row models.Document) {
	collection := cacheFor(kind)
	if collection == "" {
		return
	}
	if err := s.cache.Put(ctx, collection, s.codec.EncryptEntity(ctx, row, kind)); err != nil {
		s.log.Error(ctx, "caching server row failed", "kind", kind, "error", err)
	}
}

func tableFor(kind models.Kind) string {
	switch kind {
	case models.KindClient:
		return remote.TableClients
	case models.KindLoan:
		return remote.TablePrestamos
	default:
		return remote.TablePagos
	}
}

func cacheFor(kind models.Kind) string {
	switch kind {
	case models.KindClient:
		return store.ClientsCache
	case models.KindLoan:
		return store.LoansCache
	case models.KindPayment:
		return store.PaymentsCache
	default:
		return ""
	}
}

func referencesTempID(doc models.Document) bool {
	if models.IsTempID(doc["cliente_id"]) || models.IsTempID(doc["prestamo_id"]) {
		return true
	}
	if nested, ok := doc["nuevo_credito"].(map[string]any); ok && models.IsTempID(nested["cliente_id"]) {
		return true
	}
	return false
}

// stringID renders a server-assigned id, which arrives from JSON as a
// float64, in its canonical string form.
func stringID(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
