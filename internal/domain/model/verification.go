/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

const (
	StepVerifyIntegrity     = "verify_integrity"
	StepValidateAttestation = "validate_attestation"
	StepCheckBlobMetadata   = "check_blob_metadata"
	StepIssueAccessKeys     = "issue_access_keys"
)

// VerificationStep is one entry of the purchase verification state.
type VerificationStep struct {
	ID     string     `json:"id"`
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

// AccessKeys is the buyer-facing access material released by a successful verification.
type AccessKeys struct {
	EncryptionKey    string `json:"encryptionKey"`
	DecryptionPolicy string `json:"decryptionPolicy"`
	SessionToken     string `json:"sessionToken"`
}
