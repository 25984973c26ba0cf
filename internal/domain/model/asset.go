/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Asset is the off-chain listing of an encrypted, uploaded model or dataset.
type Asset struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ManifestBlobID string    `json:"manifestBlobId"`
	Chunked        bool      `json:"chunked"`
	PolicyID       string    `json:"policyId"`
	EncryptedDEK   []byte    `json:"-"`
	IV             []byte    `json:"-"`
	ContentHash    []byte    `json:"contentHash"`
	Seller         string    `json:"seller"`
	Price          uint64    `json:"price"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"createdAt"`
}
