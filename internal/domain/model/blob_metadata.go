/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// BlobMetadata describes a blob registered after a successful upload.
// For a chunked upload the manifest blob carries the logical file name and size.
type BlobMetadata struct {
	BlobID      string    `json:"blobId"`
	Size        int64     `json:"size"`
	Name        string    `json:"name,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Epochs      uint32    `json:"epochs"`
	Certificate []byte    `json:"certificate,omitempty"`
}

// ExpiresWithin reports whether the blob expires in [now, now+window].
func (m *BlobMetadata) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !m.ExpiresAt.Before(now) && !m.ExpiresAt.After(now.Add(window))
}
