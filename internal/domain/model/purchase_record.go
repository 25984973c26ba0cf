/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// PurchaseRecord represents a verified purchase of an asset by a buyer.
type PurchaseRecord struct {
	ID        string
	AssetID   string
	PolicyID  string
	Buyer     string
	Seller    string
	Price     uint64
	CreatedAt time.Time
	ExpiresAt *time.Time // nil if the purchase never expires
	MaxUses   int64      // 0 means unlimited
	Uses      int64
}

// Expired reports whether the record is past its expiry at now.
func (p *PurchaseRecord) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Exhausted reports whether all allowed uses are consumed.
func (p *PurchaseRecord) Exhausted() bool {
	return p.MaxUses > 0 && p.Uses >= p.MaxUses
}
