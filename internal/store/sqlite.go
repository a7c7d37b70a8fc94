package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/dbx"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens (or creates) the local database at dsn and applies pending
// schema migrations. Migrations are additive only: new collections and
// indexes, never dropped or renamed fields, so older readers keep working.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return db, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, "migrations")
}

// SchemaVersion returns the current on-disk schema version.
func SchemaVersion(db *sql.DB) (int64, error) {
	return goose.GetDBVersion(db)
}

// SQLiteStore implements Store on the local SQLite database.
type SQLiteStore struct {
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Put(ctx context.Context, collection string, doc models.Document) error {
	spec, err := specFor(collection)
	if err != nil {
		return err
	}
	key, err := spec.primaryKey(collection, doc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serializing document: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (k, doc) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET doc = excluded.doc`, collection)
	if _, err := s.db.ExecContext(ctx, query, key, string(raw)); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", collection, err)
	}
	return nil
}

func (s *SQLiteStore) GetAll(ctx context.Context, collection string) ([]models.Document, error) {
	if _, err := specFor(collection); err != nil {
		return nil, err
	}
	return s.queryDocs(ctx, fmt.Sprintf(`SELECT doc FROM %s`, collection))
}

func (s *SQLiteStore) GetByIndex(ctx context.Context, collection, index string, value any) ([]models.Document, error) {
	spec, err := specFor(collection)
	if err != nil {
		return nil, err
	}
	if err := spec.checkIndex(collection, index); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE json_extract(doc, '$.%s') = ?`, collection, index)
	return s.queryDocs(ctx, query, value)
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (models.Document, error) {
	if _, err := specFor(collection); err != nil {
		return nil, err
	}
	var raw string
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE k = ?`, collection)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s[%s]", common.ErrNotFound, collection, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", collection, key, err)
	}
	return unmarshalDoc(raw)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	if _, err := specFor(collection); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, collection)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s[%s]: %w", collection, key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, collection string) error {
	if _, err := specFor(collection); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, collection)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", collection, err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	if _, err := specFor(collection); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, collection)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return n, nil
}

func (s *SQLiteStore) queryDocs(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func unmarshalDoc(raw string) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("deserializing document: %w", err)
	}
	return doc, nil
}
