// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DrPechenyshka/AE/pkg/dbx"
	"github.com/DrPechenyshka/AE/services/orchestrator/datatypes"
)

// MessageRepository implements chat message persistence over a
// dbx.DBTX. Messages are append-only; there is no update or delete.
type MessageRepository struct {
	db dbx.DBTX
}

// NewMessageRepository constructs a repository bound to the given DBTX.
func NewMessageRepository(db dbx.DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append stores a new message, assigning identity and creation time in
// one atomic insert, and returns the message with both populated.
// Cross-request ordering for one user follows insertion order; this
// layer imposes no ordering between concurrent appends.
func (r *MessageRepository) Append(ctx context.Context, msg *datatypes.ChatMessage) (*datatypes.ChatMessage, error) {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []datatypes.Attachment{}
	}
	attJSON, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	createdAt := time.Now().UTC()

	query := `
		INSERT INTO chat_messages (user_id, role, content, attachments, model_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query,
		msg.UserID, msg.Role, msg.Content, string(attJSON), msg.ModelTag, createdAt,
	).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	msg.CreatedAt = createdAt
	msg.Attachments = attachments
	return msg, nil
}

// ListRecent returns up to limit most recent messages owned by userID.
// The same window backs both orderings: the query fetches newest-first
// and OrderOldestFirst is served by reversing in memory, so no second
// query is ever needed.
func (r *MessageRepository) ListRecent(ctx context.Context, userID int64, limit int, order Order) ([]*datatypes.ChatMessage, error) {
	query := `
		SELECT id, user_id, role, content, attachments, model_tag, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*datatypes.ChatMessage
	for rows.Next() {
		var (
			item    datatypes.ChatMessage
			attJSON []byte
		)
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Role, &item.Content,
			&attJSON, &item.ModelTag, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(attJSON) > 0 {
			if err := json.Unmarshal(attJSON, &item.Attachments); err != nil {
				return nil, fmt.Errorf("unmarshal attachments for message %d: %w", item.ID, err)
			}
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if order == OrderOldestFirst {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, nil
}
