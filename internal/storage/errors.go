/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package storage

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file too large")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrBlobNotRegistered   = errors.New("blob not registered")
	ErrStreamConsumed      = errors.New("stream already consumed")
	ErrEnvelopeCorrupt     = errors.New("storage envelope cannot be opened")
)

// ChunkUploadError reports the chunk whose upload exhausted its retries.
// No manifest is published when it occurs.
type ChunkUploadError struct {
	Index int
	Err   error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("upload of chunk %d failed: %v", e.Index, e.Err)
}

func (e *ChunkUploadError) Unwrap() error {
	return e.Err
}
