/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package marketplace

import "errors"

var (
	ErrNotInitialized   = errors.New("marketplace not initialized")
	ErrAssetNotFound    = errors.New("asset not found")
	ErrPurchaseNotFound = errors.New("purchase record not found")
	ErrPurchaseMismatch = errors.New("purchase record does not belong to this asset and buyer")
	ErrIntegrity        = errors.New("decrypted asset does not match its content hash")
	ErrInvalidRequest   = errors.New("invalid request")
)
