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

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

// AssetRepository handles asset listing persistence.
type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Create(ctx context.Context, a *model.Asset) error {
	const q = `
		INSERT INTO assets (id, name, manifest_blob_id, chunked, policy_id, encrypted_dek, iv, content_hash, seller, price, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.Name, a.ManifestBlobID, a.Chunked, a.PolicyID, a.EncryptedDEK, a.IV, a.ContentHash, a.Seller, int64(a.Price), a.Size, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// FindByID returns an asset by its id, or nil if it does not exist.
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*model.Asset, error) {
	const q = `
		SELECT id, name, manifest_blob_id, chunked, policy_id, encrypted_dek, iv, content_hash, seller, price, size, created_at
		FROM assets
		WHERE id = ?
		LIMIT 1
	`
	a, err := scanAsset(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	return a, nil
}

func (r *AssetRepository) ListBySeller(ctx context.Context, seller string) ([]*model.Asset, error) {
	const q = `
		SELECT id, name, manifest_blob_id, chunked, policy_id, encrypted_dek, iv, content_hash, seller, price, size, created_at
		FROM assets
		WHERE seller = ?
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, seller)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var out []*model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

func scanAsset(s rowScanner) (*model.Asset, error) {
	var (
		a     model.Asset
		price int64
	)
	if err := s.Scan(&a.ID, &a.Name, &a.ManifestBlobID, &a.Chunked, &a.PolicyID, &a.EncryptedDEK, &a.IV, &a.ContentHash, &a.Seller, &price, &a.Size, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Price = uint64(price)
	return &a, nil
}
