// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DrPechenyshka/AE/pkg/dbx"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
)

// UploadRepository implements upload-row persistence over a dbx.DBTX.
// File bytes live on disk (pkg/files); rows here only describe them.
type UploadRepository struct {
	db dbx.DBTX
}

// NewUploadRepository constructs a repository bound to the given DBTX.
func NewUploadRepository(db dbx.DBTX) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new upload row and returns it with identity and
// creation time populated.
func (r *UploadRepository) Create(ctx context.Context, up *datatypes.Upload) (*datatypes.Upload, error) {
	createdAt := time.Now().UTC()

	query := `
		INSERT INTO uploads (filename, original_name, mime_type, size, path, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		up.Filename, up.OriginalName, up.MimeType, up.Size, up.Path, up.UserID, createdAt,
	).Scan(&up.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	up.CreatedAt = createdAt
	return up, nil
}

// ListByUser returns the caller's uploads, newest first. Cross-user
// reads are impossible by construction.
func (r *UploadRepository) ListByUser(ctx context.Context, userID int64) ([]*datatypes.Upload, error) {
	query := `
		SELECT id, filename, original_name, mime_type, size, path, user_id, created_at
		FROM uploads
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*datatypes.Upload
	for rows.Next() {
		var item datatypes.Upload
		if err := rows.Scan(
			&item.ID, &item.Filename, &item.OriginalName, &item.MimeType,
			&item.Size, &item.Path, &item.UserID, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// GetByFilename returns the upload row with the given stored filename,
// or ErrNotFound. Used by the attachment-serving route.
func (r *UploadRepository) GetByFilename(ctx context.Context, filename string) (*datatypes.Upload, error) {
	query := `
		SELECT id, filename, original_name, mime_type, size, path, user_id, created_at
		FROM uploads
		WHERE filename = $1
	`
	up := &datatypes.Upload{}
	err := r.db.QueryRowContext(ctx, query, filename).Scan(
		&up.ID, &up.Filename, &up.OriginalName, &up.MimeType,
		&up.Size, &up.Path, &up.UserID, &up.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return up, nil
}
