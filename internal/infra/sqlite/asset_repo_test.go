/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsset_FindAndList(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)
	seedAsset(t, ctx, db, "asset-1", "policy-1")

	repo := NewAssetRepository(db)
	got, err := repo.FindByID(ctx, "asset-1")
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	require.NotNil(t, got)
	assert.Equal(t, "manifest-1", got.ManifestBlobID)
	assert.True(t, got.Chunked)
	assert.Equal(t, uint64(5000), got.Price)
	assert.Equal(t, []byte("wrapped"), got.EncryptedDEK)

	list, err := repo.ListBySeller(ctx, "S")
	require.Nil(t, err)
	assert.Len(t, list, 1)

	list, err = repo.ListBySeller(ctx, "nobody")
	require.Nil(t, err)
	assert.Empty(t, list)

	missing, err := repo.FindByID(ctx, "missing")
	require.Nil(t, err)
	assert.Nil(t, missing)
}
