/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/cache"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/encryption"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/walrus"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/storage"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/verification"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type PublishRequest struct {
	Name         string
	Data         []byte
	PolicyType   model.PolicyType
	Params       model.PolicyParams
	Epochs       uint32
	ForceChunked bool
	OnProgress   func(percent float64)
}

// PublishAsset encrypts the asset under a new policy, uploads the ciphertext
// and records the listing.
func (m *Marketplace) PublishAsset(ctx context.Context, req PublishRequest) (*model.Asset, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if err := m.storage.ValidateSize(req.Name, int64(len(req.Data))+encryption.TagSize); err != nil {
		return nil, err
	}
	payload, err := m.encryption.EncryptData(ctx, req.Data, req.PolicyType, req.Params)
	if err != nil {
		return nil, err
	}
	up, err := m.storage.UploadFile(ctx, storage.File{Name: req.Name, Data: payload.EncryptedData}, storage.UploadOptions{
		Epochs:       req.Epochs,
		ForceChunked: req.ForceChunked,
		OnProgress:   req.OnProgress,
	})
	if err != nil {
		m.discard(ctx, payload)
		return nil, err
	}

	asset := &model.Asset{
		ID:             uuid.NewString(),
		Name:           req.Name,
		ManifestBlobID: up.BlobID,
		Chunked:        up.Chunked,
		PolicyID:       payload.PolicyID,
		EncryptedDEK:   payload.EncryptedDEK,
		IV:             payload.IV,
		ContentHash:    encryption.ContentHash(req.Data),
		Seller:         req.Params.Seller,
		Price:          req.Params.Price,
		Size:           int64(len(req.Data)),
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.assets.Create(ctx, asset); err != nil {
		m.discard(ctx, payload)
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{
		"asset_id":  asset.ID,
		"blob_id":   asset.ManifestBlobID,
		"policy_id": asset.PolicyID,
		"chunked":   asset.Chunked,
	}).Info("asset published")
	return asset, nil
}

// discard drops the policy of a publish that did not complete. The uploaded
// blobs, if any, are left to expire with their epochs.
func (m *Marketplace) discard(ctx context.Context, payload *model.EncryptedPayload) {
	if err := m.encryption.DiscardPayload(context.WithoutCancel(ctx), payload); err != nil {
		m.logger.WithField("policy_id", payload.PolicyID).Warnf("failed to discard unpublished payload: %v", err)
	}
}

func (m *Marketplace) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	a, err := m.assets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
	}
	return a, nil
}

func (m *Marketplace) ListAssets(ctx context.Context, seller string) ([]*model.Asset, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.assets.ListBySeller(ctx, seller)
}

// PurchaseRequest describes a completed payment. Empty ID selects a new id;
// zero Price records the listing price.
type PurchaseRequest struct {
	ID        string
	AssetID   string
	Buyer     string
	Price     uint64
	ExpiresAt *time.Time
	MaxUses   int64
}

// RecordPurchase persists a purchase of an asset for the asset's seller and policy.
func (m *Marketplace) RecordPurchase(ctx context.Context, req PurchaseRequest) (*model.PurchaseRecord, error) {
	if strings.TrimSpace(req.Buyer) == "" {
		return nil, fmt.Errorf("%w: buyer is required", ErrInvalidRequest)
	}
	asset, err := m.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	rec := &model.PurchaseRecord{
		ID:        req.ID,
		AssetID:   asset.ID,
		PolicyID:  asset.PolicyID,
		Buyer:     req.Buyer,
		Seller:    asset.Seller,
		Price:     req.Price,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Price == 0 {
		rec.Price = asset.Price
	}
	if err := m.purchases.Create(ctx, rec); err != nil {
		return nil, err
	}
	m.logger.WithFields(logrus.Fields{
		"purchase_id": rec.ID,
		"asset_id":    asset.ID,
		"buyer":       rec.Buyer,
	}).Info("purchase recorded")
	return rec, nil
}

type RetrieveRequest struct {
	AssetID          string
	PurchaseRecordID string
	Requester        string
	Attestation      *model.AttestationDocument
	ForceRefresh     bool
}

// RetrieveAsset downloads the asset's ciphertext and decrypts it if the policy
// grants access to the requester. A denial is reported in the result.
func (m *Marketplace) RetrieveAsset(ctx context.Context, req RetrieveRequest) (*encryption.DecryptResult, error) {
	asset, err := m.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	opts := storage.DownloadOptions{ForceRefresh: req.ForceRefresh}
	var ciphertext []byte
	if asset.Chunked {
		ciphertext, err = m.storage.DownloadChunkedFile(ctx, asset.ManifestBlobID, opts)
	} else {
		ciphertext, err = m.storage.DownloadBlob(ctx, asset.ManifestBlobID, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("download asset %s: %w", asset.ID, err)
	}

	res, err := m.encryption.DecryptData(ctx, encryption.DecryptRequest{
		Ciphertext:       ciphertext,
		EncryptedDEK:     asset.EncryptedDEK,
		IV:               asset.IV,
		PolicyID:         asset.PolicyID,
		PurchaseRecordID: req.PurchaseRecordID,
		RequesterAddress: req.Requester,
		Attestation:      req.Attestation,
	})
	if err != nil || !res.Success {
		return res, err
	}
	if !encryption.VerifyIntegrity(res.Data, asset.ContentHash) {
		return &encryption.DecryptResult{AccessGranted: true, Error: ErrIntegrity.Error()}, ErrIntegrity
	}
	return res, nil
}

type VerifyRequest struct {
	AssetID          string
	PurchaseRecordID string
	Buyer            string
	AttestationID    string
	Attestation      *model.AttestationDocument
}

// VerifyPurchase runs the purchase verification pipeline for a recorded
// purchase and returns the released access keys on success.
func (m *Marketplace) VerifyPurchase(ctx context.Context, req VerifyRequest, onProgress verification.ProgressFunc) (*verification.Result, error) {
	asset, err := m.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	rec, err := m.purchases.FindByID(ctx, req.PurchaseRecordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrPurchaseNotFound, req.PurchaseRecordID)
	}
	if rec.AssetID != asset.ID || !strings.EqualFold(rec.Buyer, req.Buyer) {
		return nil, ErrPurchaseMismatch
	}

	return m.pipeline.Run(ctx, verification.Request{
		AttestationID: req.AttestationID,
		ExpectedHash:  asset.ContentHash,
		Attestation:   req.Attestation,
		BlobID:        asset.ManifestBlobID,
		PolicyID:      asset.PolicyID,
		EncryptedDEK:  asset.EncryptedDEK,
		Buyer:         rec.Buyer,
	}, onProgress)
}

func (m *Marketplace) ExpiringBlobs(ctx context.Context, days int) ([]*model.BlobMetadata, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.storage.GetExpiringBlobs(ctx, days)
}

// Health summarises the state of the marketplace's dependencies.
type Health struct {
	Storage  walrus.Health `json:"storage"`
	Cache    cache.Stats   `json:"cache"`
	Sessions int           `json:"sessions"`
}

func (m *Marketplace) Health(ctx context.Context) (Health, error) {
	if err := m.ready(); err != nil {
		return Health{}, err
	}
	return Health{
		Storage:  m.storage.Health(ctx),
		Cache:    m.storage.CacheStats(),
		Sessions: m.sessions.Len(),
	}, nil
}
