/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package chunker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

func BuildManifest(fileName string, fileSize int64, chunkIDs []string, chunkSize int64, uploadedAt time.Time) *model.ChunkedUploadManifest {
	ids := make([]string, len(chunkIDs))
	copy(ids, chunkIDs)
	return &model.ChunkedUploadManifest{
		FileName:   fileName,
		FileSize:   fileSize,
		ChunkIDs:   ids,
		ChunkSize:  chunkSize,
		UploadedAt: uploadedAt.UTC(),
	}
}

func EncodeManifest(m *model.ChunkedUploadManifest) ([]byte, error) {
	if err := ValidateManifest(m); err != nil {
		return nil, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return b, nil
}

// ParseManifest decodes and validates a manifest blob. Every failure wraps ErrManifestParse.
func ParseManifest(raw []byte) (*model.ChunkedUploadManifest, error) {
	var m model.ChunkedUploadManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestParse, err)
	}
	if err := ValidateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ValidateManifest checks that the chunk count agrees with fileSize and chunkSize.
func ValidateManifest(m *model.ChunkedUploadManifest) error {
	if m == nil {
		return fmt.Errorf("%w: nil manifest", ErrManifestParse)
	}
	if m.FileSize < 0 {
		return fmt.Errorf("%w: negative fileSize", ErrManifestParse)
	}
	if m.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunkSize must be positive", ErrManifestParse)
	}
	want := (m.FileSize + m.ChunkSize - 1) / m.ChunkSize
	if int64(len(m.ChunkIDs)) != want {
		return fmt.Errorf("%w: %d chunk ids for %d bytes at chunk size %d", ErrManifestParse, len(m.ChunkIDs), m.FileSize, m.ChunkSize)
	}
	for i, id := range m.ChunkIDs {
		if id == "" {
			return fmt.Errorf("%w: empty chunk id at index %d", ErrManifestParse, i)
		}
	}
	return nil
}

// VerifyChunks checks downloaded chunks against the manifest they were listed in.
func VerifyChunks(m *model.ChunkedUploadManifest, chunks [][]byte) error {
	if len(chunks) != len(m.ChunkIDs) {
		return fmt.Errorf("%w: got %d chunks, manifest lists %d", ErrManifestMismatch, len(chunks), len(m.ChunkIDs))
	}
	var total int64
	for _, c := range chunks {
		total += int64(len(c))
	}
	if total != m.FileSize {
		return fmt.Errorf("%w: got %d bytes, manifest declares %d", ErrManifestMismatch, total, m.FileSize)
	}
	return nil
}
