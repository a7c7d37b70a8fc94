package capture

import (
	"context"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/store"
)

// Read paths serve from the local cache only, decrypted on the way out.
// They work identically online and offline; freshness comes from the sync
// engine's cache refresh, not from these calls.

// Clients returns the cached client list.
func (s *Service) Clients(ctx context.Context) ([]models.Document, error) {
	return s.readAll(ctx, store.ClientsCache)
}

// Loans returns the cached loan list.
func (s *Service) Loans(ctx context.Context) ([]models.Document, error) {
	return s.readAll(ctx, store.LoansCache)
}

// LoansByClient returns the cached loans of one client.
func (s *Service) LoansByClient(ctx context.Context, clienteID string) ([]models.Document, error) {
	docs, err := s.cache.GetByIndex(ctx, store.LoansCache, "cliente_id", clienteID)
	if err != nil {
		return nil, err
	}
	return s.decryptAll(ctx, docs), nil
}

// Quotas returns the cached daily collection route.
func (s *Service) Quotas(ctx context.Context) ([]models.Document, error) {
	return s.readAll(ctx, store.QuotasCache)
}

// Settings returns the cached panel settings, or nil when never synced.
func (s *Service) Settings(ctx context.Context) (models.Document, error) {
	doc, err := s.cache.Get(ctx, store.SettingsCache, s.collector.PanelID)
	if err != nil {
		return nil, err
	}
	return s.codec.DecryptEntity(ctx, doc), nil
}

// PendingCount returns how many captures still await sync.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.queue.PendingCount(ctx)
}

// Stats reports per-collection cache sizes plus the outbox backlog, for
// the status screen.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	for _, collection := range []string{
		store.ClientsCache, store.LoansCache, store.QuotasCache, store.PaymentsCache,
	} {
		n, err := s.cache.Count(ctx, collection)
		if err != nil {
			return nil, err
		}
		stats[collection] = n
	}
	pending, err := s.queue.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	stats["outbox"] = pending
	return stats, nil
}

func (s *Service) readAll(ctx context.Context, collection string) ([]models.Document, error) {
	docs, err := s.cache.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	return s.decryptAll(ctx, docs), nil
}

func (s *Service) decryptAll(ctx context.Context, docs []models.Document) []models.Document {
	for i, doc := range docs {
		docs[i] = s.codec.DecryptEntity(ctx, doc)
	}
	return docs
}
