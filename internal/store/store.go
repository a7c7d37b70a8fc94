// Package store implements the device-local document store: named,
// schema-versioned collections that survive restarts and need no external
// service. The primary backend is SQLite; when the database cannot be
// opened the app degrades to a lesser-durability file-backed store.
package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// Store is the collection-level contract shared by the SQLite and file
// backends. All mutating operations on a collection are atomic: concurrent
// readers observe either the pre- or post-state, never a partial write.
type Store interface {
	// Put upserts doc by the collection's primary-key field.
	Put(ctx context.Context, collection string, doc models.Document) error

	// GetAll returns every document in the collection.
	GetAll(ctx context.Context, collection string) ([]models.Document, error)

	// GetByIndex returns the documents whose indexed field equals value.
	// The field must be declared as an index for the collection.
	GetByIndex(ctx context.Context, collection, index string, value any) ([]models.Document, error)

	// Get returns the document stored under key, or common.ErrNotFound.
	Get(ctx context.Context, collection, key string) (models.Document, error)

	// Delete removes the document stored under key. Deleting an absent key
	// is not an error.
	Delete(ctx context.Context, collection, key string) error

	// Clear removes every document in the collection.
	Clear(ctx context.Context, collection string) error

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)
}

// Collection names. Cache collections hold the read-side mirror of remote
// data keyed by permanent identifier; DeviceMeta holds installation
// configuration (encryption flag, key fingerprint, last sync).
const (
	ClientsCache    = "clients_cache"
	LoansCache      = "loans_cache"
	QuotasCache     = "quotas_cache"
	PaymentsCache   = "payments_cache"
	LoanDetailCache = "loan_detail_cache"
	SettingsCache   = "settings_cache"
	DeviceMeta      = "device_meta"
)

type collectionSpec struct {
	keyField string
	indexes  map[string]struct{}
}

func idx(fields ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		m[f] = struct{}{}
	}
	return m
}

// collections is the static registry of known collections, their primary
// keys and their secondary indexes. New collections are introduced by an
// additive schema migration plus an entry here.
var collections = map[string]collectionSpec{
	ClientsCache:    {keyField: "id", indexes: idx("nombre", "cedula")},
	LoansCache:      {keyField: "id", indexes: idx("cliente_id", "estado")},
	QuotasCache:     {keyField: "id", indexes: idx("prestamo_id", "fecha")},
	PaymentsCache:   {keyField: "id", indexes: idx("prestamo_id", "fecha_pago")},
	LoanDetailCache: {keyField: "id", indexes: idx("cliente_id", "cobrador_id", "estado")},
	SettingsCache:   {keyField: "panel_id", indexes: nil},
	DeviceMeta:      {keyField: "key", indexes: nil},
}

func specFor(collection string) (collectionSpec, error) {
	spec, ok := collections[collection]
	if !ok {
		return collectionSpec{}, fmt.Errorf("%w: %s", common.ErrUnknownCollection, collection)
	}
	return spec, nil
}

func (s collectionSpec) checkIndex(collection, index string) error {
	if _, ok := s.indexes[index]; !ok {
		return fmt.Errorf("%w: %s.%s", common.ErrUnknownIndex, collection, index)
	}
	return nil
}

// primaryKey extracts the document's primary key for a collection as the
// canonical string form. Permanent ids arrive from JSON as float64.
func (s collectionSpec) primaryKey(collection string, doc models.Document) (string, error) {
	v, ok := doc[s.keyField]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: document in %s has no %q", common.ErrValidation, collection, s.keyField)
	}
	return keyString(v), nil
}

func keyString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return fmt.Sprintf("%v", value)
	}
}
