/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// InitDB initializes the SQLite database and creates necessary tables.
func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if isMemoryPath(dbPath) {
		// every connection to :memory: opens its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	// Connection-level pragmas to improve concurrency and reliability.
	// These are executed per-connection; setting them here ensures sensible defaults.
	// NOTE: Some pragmas are persistent per DB file (journal_mode) and return a row.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA synchronous: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA busy_timeout: %w", err)
	}

	// Create tables and indexes
	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// createSchema creates all necessary database tables.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- Enable foreign keys
	PRAGMA foreign_keys = ON;

	-- Blob registry table
	CREATE TABLE IF NOT EXISTS blobs (
		blob_id TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		name TEXT,
		uploaded_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		epochs INTEGER NOT NULL,
		certificate BLOB
	);

	-- Expiry window queries scan by expires_at
	CREATE INDEX IF NOT EXISTS idx_blobs_expires_at ON blobs(expires_at);

	-- Encryption policies table; rules are stored as a JSON array
	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		rules TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Asset listings table
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		manifest_blob_id TEXT NOT NULL,
		chunked BOOLEAN NOT NULL DEFAULT 0,
		policy_id TEXT NOT NULL,
		encrypted_dek BLOB NOT NULL,
		iv BLOB NOT NULL,
		content_hash BLOB NOT NULL,
		seller TEXT NOT NULL,
		price INTEGER NOT NULL,
		size INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		-- table constraints (placed after column definitions for compatibility)
		FOREIGN KEY (policy_id) REFERENCES policies(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_assets_seller ON assets(seller);

	-- Purchase records table
	CREATE TABLE IF NOT EXISTS purchase_records (
		id TEXT PRIMARY KEY,
		asset_id TEXT NOT NULL,
		policy_id TEXT NOT NULL,
		buyer TEXT NOT NULL,
		seller TEXT NOT NULL,
		price INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP,
		max_uses INTEGER NOT NULL DEFAULT 0,
		uses INTEGER NOT NULL DEFAULT 0,
		-- table constraints (placed after column definitions for compatibility)
		FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE CASCADE,
		FOREIGN KEY (policy_id) REFERENCES policies(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_purchase_records_asset_id ON purchase_records(asset_id);
	CREATE INDEX IF NOT EXISTS idx_purchase_records_buyer ON purchase_records(buyer);
	`

	// Execute schema using transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func isMemoryPath(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, "file::memory:")
}

// CloseDB closes the database connection.
func CloseDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
