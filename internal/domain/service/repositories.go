/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

// BlobMetadataRepository defines the interface for the blob registry.
type BlobMetadataRepository interface {
	Create(ctx context.Context, m *model.BlobMetadata) error
	FindByBlobID(ctx context.Context, blobID string) (*model.BlobMetadata, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.BlobMetadata, error)
	Delete(ctx context.Context, blobID string) error
}

// PolicyRepository defines the interface for encryption policy persistence.
type PolicyRepository interface {
	Create(ctx context.Context, p *model.EncryptionPolicy) error
	FindByID(ctx context.Context, id string) (*model.EncryptionPolicy, error)
	Delete(ctx context.Context, id string) error
}

// PurchaseRecordRepository defines the interface for purchase record persistence.
type PurchaseRecordRepository interface {
	Create(ctx context.Context, p *model.PurchaseRecord) error
	FindByID(ctx context.Context, id string) (*model.PurchaseRecord, error)
	IncrementUses(ctx context.Context, id string) error
}

// AssetRepository defines the interface for asset listing persistence.
type AssetRepository interface {
	Create(ctx context.Context, a *model.Asset) error
	FindByID(ctx context.Context, id string) (*model.Asset, error)
	ListBySeller(ctx context.Context, seller string) ([]*model.Asset, error)
}
