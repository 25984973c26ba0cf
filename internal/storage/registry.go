/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

// MemoryRegistry is an in-process blob registry for deployments without a database.
type MemoryRegistry struct {
	mu    sync.RWMutex
	blobs map[string]model.BlobMetadata
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{blobs: make(map[string]model.BlobMetadata)}
}

func (r *MemoryRegistry) Create(_ context.Context, m *model.BlobMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[m.BlobID] = *m
	return nil
}

func (r *MemoryRegistry) FindByBlobID(_ context.Context, blobID string) (*model.BlobMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.blobs[blobID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MemoryRegistry) ListExpiringBetween(_ context.Context, from, to time.Time) ([]*model.BlobMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.BlobMetadata
	for _, m := range r.blobs {
		if m.ExpiresWithin(from, to.Sub(from)) {
			m := m
			out = append(out, &m)
		}
	}
	slices.SortFunc(out, func(a, b *model.BlobMetadata) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	return out, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, blobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, blobID)
	return nil
}
