/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package encryption

import "errors"

var (
	ErrEmptyData        = errors.New("data is empty")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrInvalidIV        = errors.New("invalid iv length")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrKeyUnwrap        = errors.New("failed to unwrap data encryption key")
	ErrPolicyNotFound   = errors.New("policy not found")
	ErrAccessKeys       = errors.New("failed to generate access keys")
	ErrPurchaseUse      = errors.New("failed to record purchase use")
)
