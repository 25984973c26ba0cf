/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package rats

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultWaitLimit    = 2 * time.Minute
	defaultUserAgent    = "satya/attestation-client"
	initialPollInterval = 500 * time.Millisecond
	maxPollInterval     = 5 * time.Second
)

type VerifierClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	waitLimit  time.Duration
	logger     *logrus.Logger

	pollInterval time.Duration
}

func NewVerifierClient(cfg config.AttestationConfig) (*VerifierClient, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse attestation service URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	waitLimit := cfg.WaitLimit
	if waitLimit == 0 {
		waitLimit = defaultWaitLimit
	}

	transport := &http.Transport{}
	if base.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &VerifierClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		waitLimit:    waitLimit,
		logger:       logger,
		pollInterval: initialPollInterval,
	}, nil
}

// Verify asks the service whether the attestation identified by attestationID
// was produced over expectedHash.
func (v *VerifierClient) Verify(ctx context.Context, attestationID, expectedHash string) (*VerifyResult, error) {
	if attestationID == "" {
		return nil, fmt.Errorf("refusing to verify empty attestation id")
	}
	body := map[string]string{
		"attestation_id": attestationID,
		"expected_hash":  expectedHash,
	}
	var res VerifyResult
	if err := v.do(ctx, http.MethodPost, "/api/v1/attestations/verify", body, &res); err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}
	v.logger.WithFields(logrus.Fields{
		"attestation_id": attestationID,
		"valid":          res.Valid,
	}).Debug("attestation verified")
	return &res, nil
}

// Validate asks the service to check an attestation document.
func (v *VerifierClient) Validate(ctx context.Context, doc *model.AttestationDocument) (bool, error) {
	if doc == nil {
		return false, fmt.Errorf("refusing to validate empty attestation document")
	}
	var res struct {
		Valid bool `json:"valid"`
	}
	if err := v.do(ctx, http.MethodPost, "/api/v1/attestations/validate", doc, &res); err != nil {
		return false, fmt.Errorf("validate attestation: %w", err)
	}
	return res.Valid, nil
}

// Status returns the progress of the attestation job id.
func (v *VerifierClient) Status(ctx context.Context, id string) (*StatusResult, error) {
	var res StatusResult
	if err := v.do(ctx, http.MethodGet, "/api/v1/attestations/"+url.PathEscape(id)+"/status", nil, &res); err != nil {
		return nil, fmt.Errorf("attestation status: %w", err)
	}
	return &res, nil
}

// WaitForCompletion polls Status with exponential backoff until the job is
// terminal. It gives up with ErrTimeout after the configured wait limit.
func (v *VerifierClient) WaitForCompletion(ctx context.Context, id string) (*StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, v.waitLimit)
	defer cancel()

	interval := v.pollInterval
	for {
		st, err := v.Status(ctx, id)
		if err == nil && st.Terminal() {
			return st, nil
		}
		if err != nil {
			v.logger.WithField("attestation_id", id).Debugf("status poll failed: %v", err)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, id)
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxPollInterval)
	}
}

func (v *VerifierClient) do(ctx context.Context, method, path string, in, out any) error {
	u, err := v.baseURL.Parse(path)
	if err != nil {
		return fmt.Errorf("build URL: %w", err)
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, bytes.TrimSpace(b))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
