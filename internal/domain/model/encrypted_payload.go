/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// EncryptedPayload is the result of encrypting one asset under a policy.
// EncryptedDEK is the DEK wrapped for storage; the plain DEK never leaves the encryption service.
type EncryptedPayload struct {
	Success       bool   `json:"success"`
	EncryptedData []byte `json:"encryptedData,omitempty"`
	EncryptedDEK  []byte `json:"encryptedDek,omitempty"`
	IV            []byte `json:"iv,omitempty"`
	PolicyID      string `json:"policyId,omitempty"`
	Error         string `json:"error,omitempty"`
}
