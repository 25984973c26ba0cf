/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verification

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/rats"
	"github.com/sirupsen/logrus"
)

// Fixed step failure messages. Callers classify failures by them.
const (
	MsgIntegrityFailed   = "Integrity verification failed"
	MsgAttestationFailed = "Attestation document validation failed"
	MsgBlobMetadata      = "Blob metadata unavailable"
	MsgAccessKeysFailed  = "Failed to generate access keys"
)

// BlobMetadataSource returns the registry entry of a stored blob.
type BlobMetadataSource interface {
	GetBlobMetadata(ctx context.Context, blobID string) (*model.BlobMetadata, error)
}

// AccessKeyIssuer releases buyer-facing access material for a policy.
type AccessKeyIssuer interface {
	IssueAccessKeys(ctx context.Context, policyID string, encryptedDEK []byte, buyer string) (*model.AccessKeys, error)
}

// Request identifies the purchase being verified. Attestation may be nil, in
// which case the document returned by the integrity check is validated.
type Request struct {
	AttestationID string
	ExpectedHash  []byte
	Attestation   *model.AttestationDocument
	BlobID        string
	PolicyID      string
	EncryptedDEK  []byte
	Buyer         string
}

// Result is the terminal state of a pipeline run.
type Result struct {
	Success      bool
	Steps        []model.VerificationStep
	AccessKeys   *model.AccessKeys
	BlobMetadata *model.BlobMetadata
	Error        string
}

// ProgressFunc receives a snapshot of every step after each transition.
type ProgressFunc func(steps []model.VerificationStep)

// Pipeline verifies a purchase in four ordered steps and releases access keys
// only when every step completes. Failed steps are never retried.
type Pipeline struct {
	verifier  rats.Verifier
	validator *Validator
	blobs     BlobMetadataSource
	keys      AccessKeyIssuer
	logger    *logrus.Logger
}

func NewPipeline(verifier rats.Verifier, validator *Validator, blobs BlobMetadataSource, keys AccessKeyIssuer, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		verifier:  verifier,
		validator: validator,
		blobs:     blobs,
		keys:      keys,
		logger:    logger,
	}
}

// StepIDs lists the pipeline steps in execution order.
func StepIDs() []string {
	return []string{
		model.StepVerifyIntegrity,
		model.StepValidateAttestation,
		model.StepCheckBlobMetadata,
		model.StepIssueAccessKeys,
	}
}

type run struct {
	steps      []model.VerificationStep
	onProgress ProgressFunc
}

func (r *run) set(i int, status model.StepStatus, msg string) {
	r.steps[i].Status = status
	r.steps[i].Error = msg
	if r.onProgress != nil {
		r.onProgress(append([]model.VerificationStep(nil), r.steps...))
	}
}

// Run executes the pipeline. On failure the returned Result carries the failed
// step's message and the error is a *StepError.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	ids := StepIDs()
	r := &run{steps: make([]model.VerificationStep, len(ids)), onProgress: onProgress}
	for i, id := range ids {
		r.steps[i] = model.VerificationStep{ID: id, Status: model.StepPending}
	}
	res := &Result{Steps: r.steps}
	log := p.logger.WithFields(logrus.Fields{
		"attestation_id": req.AttestationID,
		"blob_id":        req.BlobID,
		"buyer":          req.Buyer,
	})

	fail := func(i int, msg string, err error) (*Result, error) {
		r.set(i, model.StepFailed, msg)
		res.Error = msg
		res.Steps = append([]model.VerificationStep(nil), r.steps...)
		log.WithField("step", r.steps[i].ID).Warnf("purchase verification failed: %s: %v", msg, err)
		return res, &StepError{Step: r.steps[i].ID, Message: msg, Err: err}
	}

	// verify_integrity
	r.set(0, model.StepInProgress, "")
	if err := ctx.Err(); err != nil {
		return fail(0, err.Error(), err)
	}
	vr, err := p.verifier.Verify(ctx, req.AttestationID, hex.EncodeToString(req.ExpectedHash))
	if err != nil {
		return fail(0, err.Error(), err)
	}
	if !vr.Valid {
		msg := vr.Message
		if msg == "" {
			msg = MsgIntegrityFailed
		}
		return fail(0, msg, errors.New(msg))
	}
	r.set(0, model.StepCompleted, "")

	// validate_attestation
	r.set(1, model.StepInProgress, "")
	doc := req.Attestation
	if doc == nil {
		doc = vr.Attestation
	}
	if err := p.validator.Validate(doc, req.ExpectedHash); err != nil {
		return fail(1, MsgAttestationFailed, err)
	}
	r.set(1, model.StepCompleted, "")

	// check_blob_metadata
	r.set(2, model.StepInProgress, "")
	if err := ctx.Err(); err != nil {
		return fail(2, err.Error(), err)
	}
	meta, err := p.blobs.GetBlobMetadata(ctx, req.BlobID)
	if err != nil {
		return fail(2, MsgBlobMetadata+": "+err.Error(), err)
	}
	res.BlobMetadata = meta
	r.set(2, model.StepCompleted, "")

	// issue_access_keys
	r.set(3, model.StepInProgress, "")
	if err := ctx.Err(); err != nil {
		return fail(3, err.Error(), err)
	}
	keys, err := p.keys.IssueAccessKeys(ctx, req.PolicyID, req.EncryptedDEK, req.Buyer)
	if err != nil {
		return fail(3, MsgAccessKeysFailed, err)
	}
	r.set(3, model.StepCompleted, "")

	res.Success = true
	res.AccessKeys = keys
	res.Steps = append([]model.VerificationStep(nil), r.steps...)
	log.Info("purchase verified, access keys issued")
	return res, nil
}
