package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresStore keeps documents as JSONB rows in a single table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateDocument(ctx context.Context, collection string, data map[string]any) (Document, error) {
	if err := ValidCollection(collection); err != nil {
		return Document{}, err
	}
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return Document{}, err
	}

	now := time.Now().UTC()
	doc := Document{
		ID:         uuid.NewString(),
		Collection: collection,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	const query = `
		INSERT INTO documents (id, collection, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING data`
	var stored []byte
	if err := s.db.QueryRowContext(
		ctx,
		query,
		doc.ID,
		doc.Collection,
		dataJSON,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Scan(&stored); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(stored, &doc.Data); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, collection, id string) (Document, error) {
	const query = `
		SELECT id, collection, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT id, collection, data, created_at, updated_at
		FROM documents
		WHERE collection = $1`)
	args := []any{collection}
	for _, f := range filters {
		args = append(args, f.Field, FilterValue(f.Value))
		fmt.Fprintf(&b, " AND data->>$%d::text = $%d", len(args)-1, len(args))
	}
	b.WriteString(" ORDER BY seq")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	if patch == nil {
		patch = map[string]any{}
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return Document{}, err
	}

	const query = `
		UPDATE documents
		SET data = data || $1::jsonb,
			updated_at = $2
		WHERE collection = $3 AND id = $4
		RETURNING id, collection, data, created_at, updated_at`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, patchJSON, time.Now().UTC(), collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	result, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var dataJSON []byte
	if err := row.Scan(
		&doc.ID,
		&doc.Collection,
		&dataJSON,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(dataJSON, &doc.Data); err != nil {
		return Document{}, err
	}
	return doc, nil
}
