/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_CreateFindByID(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	repo := NewPolicyRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	p := &model.EncryptionPolicy{
		ID:   "policy_1",
		Type: model.PolicyAllowlist,
		Rules: []model.Rule{
			{Kind: model.RuleAllowlist, Addresses: []string{"0xa", "0xb"}},
		},
		CreatedAt: now,
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.Create(ctx, p); err == nil {
		t.Fatalf("expected duplicate policy id to fail")
	}

	got, err := repo.FindByID(ctx, "policy_1")
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected policy, got nil")
	}
	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.Rules, got.Rules)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	missing, err := repo.FindByID(ctx, "missing")
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil, got %v", missing)
	}
}

func TestPolicy_Delete(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	repo := NewPolicyRepository(db)
	p := &model.EncryptionPolicy{
		ID:        "policy_1",
		Type:      model.PolicyTeeOnly,
		Rules:     []model.Rule{{Kind: model.RuleEnclave, EnclaveID: "enclave-1"}},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.Delete(ctx, "policy_1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	got, err := repo.FindByID(ctx, "policy_1")
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	assert.Nil(t, got)
	assert.Nil(t, repo.Delete(ctx, "missing"))
}
