package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ibills/backoffice/internal/port"
)

var ErrDocumentNotFound = errors.New("document not found")

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	collection VARCHAR(64) NOT NULL,
	id CHAR(36) NOT NULL,
	body JSON NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
)`

// MySQLDocumentStore keeps each collection as rows in a single documents
// table with a JSON body column. Filters run against JSON_EXTRACT paths.
type MySQLDocumentStore struct {
	db *sql.DB
}

func NewMySQLDocumentStore(db *sql.DB) *MySQLDocumentStore {
	return &MySQLDocumentStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (m *MySQLDocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (m *MySQLDocumentStore) Get(ctx context.Context, collection, id string) (*port.Document, error) {
	var doc port.Document
	err := m.db.QueryRowContext(ctx, `
		SELECT id, body FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&doc.ID, &doc.Body)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}

	return &doc, nil
}

func (m *MySQLDocumentStore) List(ctx context.Context, collection string) ([]port.Document, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, body FROM documents WHERE collection = ? ORDER BY created_at`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (m *MySQLDocumentStore) Query(ctx context.Context, collection string, filters ...port.Filter) ([]port.Document, error) {
	var (
		where strings.Builder
		args  = []any{collection}
	)
	where.WriteString(`SELECT id, body FROM documents WHERE collection = ?`)

	for _, f := range filters {
		clause, arg, err := filterClause(f)
		if err != nil {
			return nil, err
		}
		where.WriteString(" AND ")
		where.WriteString(clause)
		args = append(args, arg)
	}
	where.WriteString(" ORDER BY created_at")

	rows, err := m.db.QueryContext(ctx, where.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (m *MySQLDocumentStore) Insert(ctx context.Context, collection string, body any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	id := uuid.NewString()
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`,
		collection, id, raw,
	); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	return id, nil
}

func (m *MySQLDocumentStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("marshal partial: %w", err)
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE documents SET body = JSON_MERGE_PATCH(body, CAST(? AS JSON))
		WHERE collection = ? AND id = ?`,
		raw, collection, id,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// MySQL reports 0 affected rows for a no-op merge too; re-check
		// existence so a clean no-op update is not an error.
		doc, getErr := m.Get(ctx, collection, id)
		if getErr != nil {
			return getErr
		}
		if doc == nil {
			return ErrDocumentNotFound
		}
	}

	return nil
}

// filterClause maps a port filter onto a JSON path predicate. Field names
// come from code, never from request input.
func filterClause(f port.Filter) (string, any, error) {
	path := fmt.Sprintf("'$.%s'", f.Field)

	switch f.Op {
	case port.FilterEq:
		return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(body, %s)) = ?", path), f.Value, nil
	case port.FilterGt:
		return fmt.Sprintf("CAST(JSON_EXTRACT(body, %s) AS DECIMAL(20,4)) > ?", path), f.Value, nil
	}
	return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
}

func scanDocuments(rows *sql.Rows) ([]port.Document, error) {
	docs := []port.Document{}
	for rows.Next() {
		var doc port.Document
		if err := rows.Scan(&doc.ID, &doc.Body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
