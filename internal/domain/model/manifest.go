/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// ChunkedUploadManifest is persisted as a blob of its own; its blob id is the
// public reference of a chunked file.
type ChunkedUploadManifest struct {
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	ChunkIDs   []string  `json:"chunkIds"`
	ChunkSize  int64     `json:"chunkSize"`
	UploadedAt time.Time `json:"uploadedAt"`
}
