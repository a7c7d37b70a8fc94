package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// FileStore is the lesser-durability fallback used when the SQLite
// database cannot be opened: one JSON file holding every collection,
// rewritten atomically (temp file + rename) on each mutation. It keeps the
// same Store contract but has no real secondary indexes, GetByIndex scans.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]map[string]models.Document
}

// OpenFile loads the fallback store at path, creating it when absent.
func OpenFile(path string) (*FileStore, error) {
	fs := &FileStore{path: path, data: make(map[string]map[string]models.Document)}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(b, &fs.data); err != nil {
		return nil, fmt.Errorf("%w: corrupt fallback store: %v", common.ErrStorageUnavailable, err)
	}
	return fs, nil
}

func (f *FileStore) Put(ctx context.Context, collection string, doc models.Document) error {
	spec, err := specFor(collection)
	if err != nil {
		return err
	}
	key, err := spec.primaryKey(collection, doc)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data[collection] == nil {
		f.data[collection] = make(map[string]models.Document)
	}
	f.data[collection][key] = doc.Clone()
	return f.persistLocked()
}

func (f *FileStore) GetAll(ctx context.Context, collection string) ([]models.Document, error) {
	if _, err := specFor(collection); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Document
	for _, doc := range f.data[collection] {
		result = append(result, doc.Clone())
	}
	return result, nil
}

func (f *FileStore) GetByIndex(ctx context.Context, collection, index string, value any) ([]models.Document, error) {
	spec, err := specFor(collection)
	if err != nil {
		return nil, err
	}
	if err := spec.checkIndex(collection, index); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.Document
	for _, doc := range f.data[collection] {
		if looseEqual(doc[index], value) {
			result = append(result, doc.Clone())
		}
	}
	return result, nil
}

func (f *FileStore) Get(ctx context.Context, collection, key string) (models.Document, error) {
	if _, err := specFor(collection); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.data[collection][key]
	if !ok {
		return nil, fmt.Errorf("%w: %s[%s]", common.ErrNotFound, collection, key)
	}
	return doc.Clone(), nil
}

func (f *FileStore) Delete(ctx context.Context, collection, key string) error {
	if _, err := specFor(collection); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[collection][key]; !ok {
		return nil
	}
	delete(f.data[collection], key)
	return f.persistLocked()
}

func (f *FileStore) Clear(ctx context.Context, collection string) error {
	if _, err := specFor(collection); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.data[collection]) == 0 {
		return nil
	}
	delete(f.data, collection)
	return f.persistLocked()
}

func (f *FileStore) Count(ctx context.Context, collection string) (int, error) {
	if _, err := specFor(collection); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data[collection]), nil
}

func (f *FileStore) persistLocked() error {
	b, err := json.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("serializing fallback store: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return nil
}

// looseEqual compares an indexed field against a query value, normalizing
// numeric types: JSON decoding yields float64 while callers may pass ints.
func looseEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch value := v.(type) {
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case float32:
		return float64(value)
	default:
		return v
	}
}
