// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage provides the persistence boundary for chat messages,
// uploads and user accounts, backed by PostgreSQL through database/sql
// and the pgx stdlib driver. Repositories work against the minimal
// dbx.DBTX interface so they run unchanged inside transactions and in
// sqlite-backed tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DrPechenyshka/AE/services/orchestrator/storage/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Order selects the presentation order of a recent-messages window.
// Both orders describe the same window (the most recent N rows); only
// the direction of iteration differs, and a single query serves either.
type Order int

const (
	// OrderOldestFirst yields the window oldest row first, the order a
	// generation context is assembled in.
	OrderOldestFirst Order = iota

	// OrderNewestFirst yields the window newest row first, the order a
	// history view displays.
	OrderNewestFirst
)

// Store bundles the repositories over one database handle and owns
// schema migrations.
type Store struct {
	db       *sql.DB
	messages *MessageRepository
	users    *UserRepository
	uploads  *UploadRepository
}

// NewPostgresStore opens a PostgreSQL connection for the given DSN,
// runs pending migrations, and returns the assembled Store.
func NewPostgresStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("goose dialect error: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return &Store{
		db:       db,
		messages: NewMessageRepository(db),
		users:    NewUserRepository(db),
		uploads:  NewUploadRepository(db),
	}, nil
}

// NewStore wraps an already opened database handle without running
// migrations. Used by tests that manage their own schema.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		messages: NewMessageRepository(db),
		users:    NewUserRepository(db),
		uploads:  NewUploadRepository(db),
	}
}

// Conn returns the underlying database handle.
func (s *Store) Conn() *sql.DB { return s.db }

// Messages returns the chat message repository.
func (s *Store) Messages() *MessageRepository { return s.messages }

// Users returns the user account repository.
func (s *Store) Users() *UserRepository { return s.users }

// Uploads returns the upload repository.
func (s *Store) Uploads() *UploadRepository { return s.uploads }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }
