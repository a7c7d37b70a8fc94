package syncer

import (
	"context"
	"net/url"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/remote"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
)

// cacheSource describes one remote table or view mirrored into a local
// collection. Kind selects the sensitive-field set to re-encrypt rows with
// before caching; empty means the rows are stored plaintext.
type cacheSource struct {
	collection string
	table      string
	filters    func(c models.CollectorContext) url.Values
	kind       models.Kind
}

var cacheSources = []cacheSource{
	{
		collection: store.ClientsCache,
		table:      remote.TableClients,
		filters:    func(c models.CollectorContext) url.Values { return url.Values{"panel_id": {c.PanelID}} },
		kind:       models.KindClient,
	},
	{
		collection: store.LoansCache,
		table:      remote.TablePrestamos,
		filters:    func(c models.CollectorContext) url.Values { return url.Values{"panel_id": {c.PanelID}} },
		kind:       models.KindLoan,
	},
	{
		collection: store.QuotasCache,
		table:      remote.ViewQuotas,
		filters:    func(c models.CollectorContext) url.Values { return url.Values{"cobrador_id": {c.CollectorID}} },
	},
	{
		collection: store.PaymentsCache,
		table:      remote.TablePagos,
		filters:    func(c models.CollectorContext) url.Values { return url.Values{"cobrador_id": {c.CollectorID}} },
		kind:       models.KindPayment,
	},
	{
		collection: store.LoanDetailCache,
		table:      remote.TablePrestamos,
		filters: func(c models.CollectorContext) url.Values {
			return url.Values{"cobrador_id": {c.CollectorID}, "estado": {"activo"}}
		},
		kind: models.KindLoan,
	},
	{
		collection: store.SettingsCache,
		table:      remote.ViewSettings,
		filters:    func(c models.CollectorContext) url.Values { return url.Values{"panel_id": {c.PanelID}} },
	},
}

// refreshCaches replaces each local cache with the server's current rows.
// The refresh is wholesale: fetch, clear, repopulate. A source that fails
// to fetch keeps its previous contents; the stale copy is better than an
// empty one.
func (e *Engine) refreshCaches(ctx context.Context) {
	for _, src := range cacheSources {
		rows, err := e.remote.Select(ctx, src.table, src.filters(e.collector))
		if err != nil {
			e.log.Warn(ctx, "cache refresh fetch failed", "collection", src.collection, "error", err)
			continue
		}
		if err := e.cache.Clear(ctx, src.collection); err != nil {
			e.log.Error(ctx, "cache clear failed", "collection", src.collection, "error", err)
			continue
		}
		stored := 0
		for _, row := range rows {
			if src.kind != "" {
				row = e.codec.EncryptEntity(ctx, row, src.kind)
			}
			if err := e.cache.Put(ctx, src.collection, row); err != nil {
				e.log.Error(ctx, "cache write failed", "collection", src.collection, "error", err)
				continue
			}
			stored++
		}
		e.log.Debug(ctx, "cache refreshed", "collection", src.collection, "rows", stored)
	}
}
