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

// UserRepository implements account persistence over a dbx.DBTX.
type UserRepository struct {
	db dbx.DBTX
}

// NewUserRepository constructs a repository bound to the given DBTX.
func NewUserRepository(db dbx.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new account and returns it with identity and
// creation time populated. Email uniqueness is enforced by the schema;
// a violation surfaces as a wrapped db error.
func (r *UserRepository) Create(ctx context.Context, user *datatypes.User) (*datatypes.User, error) {
	createdAt := time.Now().UTC()

	query := `
		INSERT INTO users (email, password_hash, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Name, createdAt,
	).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.CreatedAt = createdAt
	return user, nil
}

// GetByEmail returns the account registered under email, or ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*datatypes.User, error) {
	query := `
		SELECT id, email, password_hash, name, created_at
		FROM users
		WHERE email = $1
	`
	user := &datatypes.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByID returns the account with the given id, or ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*datatypes.User, error) {
	query := `
		SELECT id, email, password_hash, name, created_at
		FROM users
		WHERE id = $1
	`
	user := &datatypes.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
