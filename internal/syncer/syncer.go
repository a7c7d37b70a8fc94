// Package syncer replays pending mutations against the backend once it is
// reachable. A pass drains the outbox in dependency order, rewrites
// temporary references as permanent ids become known, refreshes the local
// caches wholesale and purges confirmed records.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/cryptox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/outbox"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/remote"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
)

// Remote is the backend surface the engine replays against.
type Remote interface {
	Insert(ctx context.Context, table string, doc models.Document) (models.Document, error)
	Select(ctx context.Context, table string, filters url.Values) ([]models.Document, error)
	CollectAndRenew(ctx context.Context, args models.Document) (models.Document, error)
}

// Reachability answers whether the backend can be reached right now.
type Reachability interface {
	Validate(ctx context.Context, force bool) bool
}

// Report summarizes one sync pass.
type Report struct {
	// Ran is false when the pass did not execute: another pass was already
	// running, or the backend was unreachable.
	Ran bool

	Synced   int
	Failed   int
	Deferred int
	Purged   int

	// Pending is the outbox size after the pass.
	Pending int

	FinishedAt time.Time
}

// Engine drains the outbox. At most one pass runs at a time; concurrent
// triggers are no-ops.
type Engine struct {
	queue     outbox.Repository
	cache     store.Store
	remote    Remote
	codec     *cryptox.FieldCodec
	reach     Reachability
	collector models.CollectorContext
	log       logging.Logger

	running atomic.Bool
	now     func() time.Time
}

func NewEngine(queue outbox.Repository, cache store.Store, rem Remote, codec *cryptox.FieldCodec,
	reach Reachability, collector models.CollectorContext, log logging.Logger) *Engine {
	return &Engine{
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

// SyncNow runs one full sync pass. The reachability check is forced: a
// stale cached probe result never starts a replay. A panic inside the pass
// is contained here and surfaces as an error; pending records stay pending.
func (e *Engine) SyncNow(ctx context.Context) (report Report, err error) {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Debug(ctx, "sync already in progress")
		return Report{}, nil
	}
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(ctx, "sync pass panicked", "panic", r)
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
	}()

	if !e.reach.Validate(ctx, true) {
		report.Pending, _ = e.queue.PendingCount(ctx)
		e.log.Info(ctx, "sync skipped, backend unreachable", "pending", report.Pending)
		return report, nil
	}
	report.Ran = true

	for _, kind := range models.SyncOrder {
		if err := e.drainKind(ctx, kind, &report); err != nil {
			return report, err
		}
	}

	e.refreshCaches(ctx)

	for _, kind := range models.SyncOrder {
		n, err := e.queue.PurgeSynced(ctx, kind)
		if err != nil {
			e.log.Error(ctx, "purging synced records failed", "kind", kind, "error", err)
			continue
		}
		report.Purged += n
	}

	report.Pending, _ = e.queue.PendingCount(ctx)
	report.FinishedAt = e.now()
	e.recordLastSync(ctx, report)
	e.log.Info(ctx, "sync pass finished",
		"synced", report.Synced, "failed", report.Failed,
		"deferred", report.Deferred, "pending", report.Pending)
	return report, nil
}

func (e *Engine) drainKind(ctx context.Context, kind models.Kind, report *Report) error {
	pending, err := e.queue.Pending(ctx, kind)
	if err != nil {
		return fmt.Errorf("loading pending %s records: %w", kind, err)
	}

	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload := e.codec.DecryptEntity(ctx, rec.Payload)
		if err := unresolvedRef(payload); err != nil {
			report.Deferred++
			e.log.Debug(ctx, "record deferred", "temp_id", rec.TempID, "reason", err)
			continue
		}

		err := e.replay(ctx, kind, rec, payload)
		switch {
		case err == nil:
			report.Synced++
		case errors.Is(err, common.ErrDuplicateEffect):
			// the server already holds this record
			e.log.Info(ctx, "duplicate effect treated as success", "temp_id", rec.TempID)
			if err := e.queue.MarkSynced(ctx, rec.TempID); err != nil {
				return err
			}
			report.Synced++
		case errors.Is(err, common.ErrPermissionDenied):
			if retryErr := e.retryStrengthened(ctx, kind, rec, payload); retryErr == nil {
				report.Synced++
			} else {
				report.Failed++
				if err := e.queue.RecordFailure(ctx, rec.TempID, retryErr); err != nil {
					return err
				}
			}
		default:
			report.Failed++
			e.log.Warn(ctx, "replay failed", "temp_id", rec.TempID, "error", err)
			if err := e.queue.RecordFailure(ctx, rec.TempID, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// retryStrengthened re-asserts authorship and replays once. Backend write
// policies key on created_by; a payload captured before the collector
// context was fully known can carry a stale value.
func (e *Engine) retryStrengthened(ctx context.Context, kind models.Kind, rec models.OutboxRecord, payload models.Document) error {
	strengthened := payload.Clone()
	strengthened["created_by"] = e.collector.AuthorID()
	e.log.Info(ctx, "permission denied, retrying with asserted authorship", "temp_id", rec.TempID)

	err := e.replay(ctx, kind, rec, strengthened)
	if errors.Is(err, common.ErrDuplicateEffect) {
		return e.queue.MarkSynced(ctx, rec.TempID)
	}
	return err
}

// replay sends one record. On success the record is marked synced and any
// permanent id the server assigned is propagated into still-pending
// records that referenced the temporary id.
func (e *Engine) replay(ctx context.Context, kind models.Kind, rec models.OutboxRecord, payload models.Document) error {
	switch kind {
	case models.KindClient:
		return e.insertAndRewrite(ctx, remote.TableClients, rec, payload)
	case models.KindLoan:
		return e.insertAndRewrite(ctx, remote.TablePrestamos, rec, payload)
	case models.KindPayment:
		if _, err := e.remote.Insert(ctx, remote.TablePagos, payload); err != nil {
			return err
		}
		return e.queue.MarkSynced(ctx, rec.TempID)
	case models.KindCollection:
		if _, err := e.remote.CollectAndRenew(ctx, collectArgs(payload)); err != nil {
			return err
		}
		return e.queue.MarkSynced(ctx, rec.TempID)
	default:
		return fmt.Errorf("%w: unknown kind %q", common.ErrValidation, kind)
	}
}

func (e *Engine) insertAndRewrite(ctx context.Context, table string, rec models.OutboxRecord, payload models.Document) error {
	row, err := e.remote.Insert(ctx, table, payload)
	if err != nil {
		return err
	}
	if err := e.queue.MarkSynced(ctx, rec.TempID); err != nil {
		return err
	}
	permanentID, ok := row["id"]
	if !ok || permanentID == nil {
		e.log.Warn(ctx, "server row carries no id, references not rewritten", "temp_id", rec.TempID)
		return nil
	}
	return e.rewriteReferences(ctx, rec.TempID, permanentID)
}

// referenceFields are the foreign keys a pending payload may hold under a
// temporary value.
var referenceFields = []string{"cliente_id", "prestamo_id"}

// unresolvedRef reports whether payload still references an entity by
// temporary id, including the nested renewal credit.
func unresolvedRef(payload models.Document) error {
	for _, field := range referenceFields {
		if models.IsTempID(payload[field]) {
			return fmt.Errorf("%w: %s", common.ErrReferenceUnresolved, field)
		}
	}
	if nested, ok := payload["nuevo_credito"].(map[string]any); ok {
		if models.IsTempID(nested["cliente_id"]) {
			return fmt.Errorf("%w: nuevo_credito.cliente_id", common.ErrReferenceUnresolved)
		}
	}
	return nil
}

// rewriteReferences replaces tempID with permanentID in every pending
// payload that references it, so records deferred earlier become sendable
// within the same pass.
func (e *Engine) rewriteReferences(ctx context.Context, tempID string, permanentID any) error {
	for _, kind := range []models.Kind{models.KindLoan, models.KindCollection, models.KindPayment} {
		pending, err := e.queue.Pending(ctx, kind)
		if err != nil {
			return err
		}
		for _, rec := range pending {
			changed := false
			for _, field := range referenceFields {
				if rec.Payload[field] == tempID {
					rec.Payload[field] = permanentID
					changed = true
				}
			}
			if nested, ok := rec.Payload["nuevo_credito"].(map[string]any); ok && nested["cliente_id"] == tempID {
				nested["cliente_id"] = permanentID
				changed = true
			}
			if !changed {
				continue
			}
			if err := e.queue.UpdatePayload(ctx, rec.TempID, rec.Payload); err != nil {
				return err
			}
			e.log.Debug(ctx, "reference rewritten",
				"temp_id", rec.TempID, "ref", tempID, "permanent_id", permanentID)
		}
	}
	return nil
}

// collectArgs shapes a collection payload into the stored procedure's
// parameter names.
func collectArgs(payload models.Document) models.Document {
	args := models.Document{
		"p_prestamo_id":     payload["prestamo_id"],
		"p_cliente_id":      payload["cliente_id"],
		"p_cobrador_id":     payload["cobrador_id"],
		"p_panel_id":        payload["panel_id"],
		"p_monto_pago":      payload["monto_pago"],
		"p_fecha_pago":      payload["fecha_pago"],
		"p_hora_pago":       payload["hora_pago"],
		"p_idempotency_key": payload["idempotency_key"],
	}
	if v, ok := payload["created_by"]; ok {
		args["p_created_by"] = v
	}
	if nested, ok := payload["nuevo_credito"]; ok {
		args["p_nuevo_credito"] = nested
	}
	return args
}

func (e *Engine) recordLastSync(ctx context.Context, report Report) {
	doc := models.Document{
		"key":    "last_sync",
		"at":     report.FinishedAt.UTC().Format(time.RFC3339),
		"synced": report.Synced,
		"failed": report.Failed,
	}
	if err := e.cache.Put(ctx, store.DeviceMeta, doc); err != nil {
		e.log.Error(ctx, "recording last sync failed", "error", err)
	}
}
