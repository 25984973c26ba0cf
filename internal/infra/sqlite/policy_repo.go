/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

// PolicyRepository handles encryption policy persistence.
type PolicyRepository struct {
	db *sql.DB
}

func NewPolicyRepository(db *sql.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Create inserts a policy. Policies are immutable, so there is no update.
func (r *PolicyRepository) Create(ctx context.Context, p *model.EncryptionPolicy) error {
	const q = `
		INSERT INTO policies (id, type, rules, created_at)
		VALUES (?, ?, ?, ?)
	`
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("encode policy rules: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, p.ID, string(p.Type), string(rules), p.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

// FindByID returns a policy by its id, or nil if it does not exist.
func (r *PolicyRepository) FindByID(ctx context.Context, id string) (*model.EncryptionPolicy, error) {
	const q = `
		SELECT id, type, rules, created_at
		FROM policies
		WHERE id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var (
		p     model.EncryptionPolicy
		typ   string
		rules string
	)
	if err := row.Scan(&p.ID, &typ, &rules, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	p.Type = model.PolicyType(typ)
	if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
		return nil, fmt.Errorf("decode policy rules: %w", err)
	}
	return &p, nil
}

// Delete removes a policy that nothing references yet.
func (r *PolicyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM policies WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	return nil
}
