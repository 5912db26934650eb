package documents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Table using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Insert adds a metadata row.
func (r *PGRepo) Insert(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    name,
    category,
    file_type,
    file_size,
    file_path,
    description,
    uploaded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var description sql.NullString
	if doc.Description != "" {
		description = sql.NullString{String: doc.Description, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Name,
		string(doc.Category),
		doc.MimeType,
		doc.SizeBytes,
		doc.StoragePath,
		description,
		doc.UploadedAt,
	)
	return err
}

const selectColumns = `id, user_id, name, category, file_type, file_size, file_path, description, uploaded_at`

// ListByOwner lists documents ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, userID string) ([]Document, error) {
	const query = `
SELECT ` + selectColumns + `
FROM documents
WHERE user_id = $1
ORDER BY uploaded_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// GetByID fetches a document by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, documentID string) (Document, error) {
	const query = `
SELECT ` + selectColumns + `
FROM documents
WHERE user_id = $1 AND id = $2
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, userID, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// Delete removes a metadata row.
func (r *PGRepo) Delete(ctx context.Context, userID, documentID string) error {
	const query = `DELETE FROM documents WHERE user_id = $1 AND id = $2`
	res, err := r.DB.ExecContext(ctx, query, userID, documentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (Document, error) {
	var doc Document
	var category string
	var description sql.NullString
	if err := s.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Name,
		&category,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StoragePath,
		&description,
		&doc.UploadedAt,
	); err != nil {
		return Document{}, err
	}
	doc.Category = Category(category)
	if description.Valid {
		doc.Description = description.String
	}
	return doc, nil
}

var _ Table = (*PGRepo)(nil)
