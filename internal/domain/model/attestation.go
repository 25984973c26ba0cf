/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// AttestationDocument is an externally issued enclave attestation.
// Signature holds the COSE_Sign1 envelope whose payload is the CBOR encoding of
// the claimed fields; Certificate is the DER leaf certificate that signed it.
type AttestationDocument struct {
	ModuleID    string    `json:"moduleId"`
	PCR0        []byte    `json:"pcr0"`
	PCR1        []byte    `json:"pcr1"`
	PCR2        []byte    `json:"pcr2"`
	PublicKey   []byte    `json:"publicKey,omitempty"`
	UserData    []byte    `json:"userData,omitempty"`
	Nonce       []byte    `json:"nonce,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Signature   []byte    `json:"signature"`
	Certificate []byte    `json:"certificate"`
}
