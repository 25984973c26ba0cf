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
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

// BlobMetadataRepository is the persistent blob registry.
type BlobMetadataRepository struct {
	db *sql.DB
}

func NewBlobMetadataRepository(db *sql.DB) *BlobMetadataRepository {
	return &BlobMetadataRepository{db: db}
}

// Create registers a blob. Re-registering the same blob id replaces the entry,
// since identical content maps to the same id.
func (r *BlobMetadataRepository) Create(ctx context.Context, m *model.BlobMetadata) error {
	const q = `
		INSERT INTO blobs (blob_id, size, name, uploaded_at, expires_at, epochs, certificate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(blob_id) DO UPDATE SET
			size = excluded.size,
			name = excluded.name,
			uploaded_at = excluded.uploaded_at,
			expires_at = excluded.expires_at,
			epochs = excluded.epochs,
			certificate = excluded.certificate
	`
	_, err := r.db.ExecContext(ctx, q, m.BlobID, m.Size, m.Name, m.UploadedAt.UTC(), m.ExpiresAt.UTC(), m.Epochs, m.Certificate)
	if err != nil {
		return fmt.Errorf("insert blob: %w", err)
	}
	return nil
}

// FindByBlobID returns the registry entry or nil if unknown.
func (r *BlobMetadataRepository) FindByBlobID(ctx context.Context, blobID string) (*model.BlobMetadata, error) {
	const q = `
		SELECT blob_id, size, name, uploaded_at, expires_at, epochs, certificate
		FROM blobs
		WHERE blob_id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, blobID)
	m, err := scanBlob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan blob: %w", err)
	}
	return m, nil
}

// ListExpiringBetween returns entries with from <= expires_at <= to, soonest first.
func (r *BlobMetadataRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.BlobMetadata, error) {
	const q = `
		SELECT blob_id, size, name, uploaded_at, expires_at, epochs, certificate
		FROM blobs
		WHERE expires_at >= ? AND expires_at <= ?
		ORDER BY expires_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query expiring blobs: %w", err)
	}
	defer rows.Close()

	var out []*model.BlobMetadata
	for rows.Next() {
		m, err := scanBlob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blob: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blobs: %w", err)
	}
	return out, nil
}

func (r *BlobMetadataRepository) Delete(ctx context.Context, blobID string) error {
	const q = `
		DELETE FROM blobs
		WHERE blob_id = ?
	`
	if _, err := r.db.ExecContext(ctx, q, blobID); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlob(s rowScanner) (*model.BlobMetadata, error) {
	var (
		m    model.BlobMetadata
		name sql.NullString
	)
	if err := s.Scan(&m.BlobID, &m.Size, &name, &m.UploadedAt, &m.ExpiresAt, &m.Epochs, &m.Certificate); err != nil {
		return nil, err
	}
	m.Name = name.String
	return &m, nil
}
