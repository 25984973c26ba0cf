/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package rats

import (
	"context"
	"errors"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
)

var (
	ErrNotConfigured = errors.New("attestation service not configured")
	ErrTimeout       = errors.New("attestation did not complete in time")
	ErrBadResponse   = errors.New("unexpected attestation service response")
)

// Status values reported by the attestation service.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// VerifyResult is the answer to an integrity verification request.
type VerifyResult struct {
	Valid       bool                       `json:"valid"`
	Message     string                     `json:"message,omitempty"`
	Attestation *model.AttestationDocument `json:"attestation,omitempty"`
}

// StatusResult describes the progress of an attestation job.
type StatusResult struct {
	Status      string                     `json:"status"`
	Progress    int                        `json:"progress"`
	Message     string                     `json:"message,omitempty"`
	Attestation *model.AttestationDocument `json:"attestation,omitempty"`
}

// Terminal reports whether the job will not change state anymore.
func (s *StatusResult) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Verifier checks that an enclave produced an attestation over expectedHash.
type Verifier interface {
	Verify(ctx context.Context, attestationID, expectedHash string) (*VerifyResult, error)
}
