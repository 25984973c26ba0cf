/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verification

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDocument  = errors.New("attestation document missing")
	ErrPCRMismatch      = errors.New("PCR values do not match the known-good set")
	ErrCertificate      = errors.New("attestation certificate rejected")
	ErrSignature        = errors.New("attestation signature invalid")
	ErrPayloadMismatch  = errors.New("signed attestation payload does not match document")
	ErrUserDataMismatch = errors.New("attestation user data does not match expected hash")
	ErrInvalidPCRSet    = errors.New("invalid PCR set")
)

// StepError is returned by Pipeline.Run when a step fails.
type StepError struct {
	Step    string
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Message, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
