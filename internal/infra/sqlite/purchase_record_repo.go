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

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

// PurchaseRecordRepository handles purchase record persistence.
type PurchaseRecordRepository struct {
	db *sql.DB
}

func NewPurchaseRecordRepository(db *sql.DB) *PurchaseRecordRepository {
	return &PurchaseRecordRepository{db: db}
}

func (r *PurchaseRecordRepository) Create(ctx context.Context, p *model.PurchaseRecord) error {
	const q = `
		INSERT INTO purchase_records (id, asset_id, policy_id, buyer, seller, price, created_at, expires_at, max_uses, uses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var expiresAt sql.NullTime
	if p.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: p.ExpiresAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q, p.ID, p.AssetID, p.PolicyID, p.Buyer, p.Seller, int64(p.Price), p.CreatedAt.UTC(), expiresAt, p.MaxUses, p.Uses)
	if err != nil {
		return fmt.Errorf("insert purchase record: %w", err)
	}
	return nil
}

// FindByID returns a purchase record by its id, or nil if it does not exist.
func (r *PurchaseRecordRepository) FindByID(ctx context.Context, id string) (*model.PurchaseRecord, error) {
	const q = `
		SELECT id, asset_id, policy_id, buyer, seller, price, created_at, expires_at, max_uses, uses
		FROM purchase_records
		WHERE id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var (
		p         model.PurchaseRecord
		price     int64
		expiresAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.AssetID, &p.PolicyID, &p.Buyer, &p.Seller, &price, &p.CreatedAt, &expiresAt, &p.MaxUses, &p.Uses); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan purchase record: %w", err)
	}
	p.Price = uint64(price)
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	return &p, nil
}

// IncrementUses records one use of a purchase. It fails with
// domain.ErrExhausted once max_uses is reached and domain.ErrNotFound for unknown ids.
func (r *PurchaseRecordRepository) IncrementUses(ctx context.Context, id string) error {
	const q = `
		UPDATE purchase_records
		SET uses = uses + 1
		WHERE id = ? AND (max_uses = 0 OR uses < max_uses)
	`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("update purchase record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	p, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return domain.ErrNotFound
	}
	return domain.ErrExhausted
}
