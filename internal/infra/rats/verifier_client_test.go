/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package rats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, waitLimit time.Duration) (*VerifierClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	c, err := NewVerifierClient(config.AttestationConfig{
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
		WaitLimit: waitLimit,
	})
	require.Nil(t, err)
	c.pollInterval = time.Millisecond
	return c, srv
}

func TestVerifierClient_Verify(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/attestations/verify", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		res := VerifyResult{Valid: req["expected_hash"] == "abcd"}
		if res.Valid {
			res.Attestation = &model.AttestationDocument{ModuleID: "satya-enclave-v1"}
		} else {
			res.Message = "hash mismatch"
		}
		_ = json.NewEncoder(w).Encode(res)
	})
	c, srv := newTestClient(t, mux, time.Second)
	defer srv.Close()

	res, err := c.Verify(context.Background(), "att-1", "abcd")
	require.Nil(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.Attestation)
	assert.Equal(t, "satya-enclave-v1", res.Attestation.ModuleID)

	res, err = c.Verify(context.Background(), "att-1", "ffff")
	require.Nil(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "hash mismatch", res.Message)

	_, err = c.Verify(context.Background(), "", "abcd")
	assert.NotNil(t, err)
}

func TestVerifierClient_ValidateAndErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/attestations/validate", func(w http.ResponseWriter, r *http.Request) {
		var doc model.AttestationDocument
		_ = json.NewDecoder(r.Body).Decode(&doc)
		_ = json.NewEncoder(w).Encode(map[string]bool{"valid": doc.ModuleID == "satya-enclave-v1"})
	})
	mux.HandleFunc("GET /api/v1/attestations/broken/status", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /api/v1/attestations/garbled/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{"))
	})
	c, srv := newTestClient(t, mux, time.Second)
	defer srv.Close()

	ok, err := c.Validate(context.Background(), &model.AttestationDocument{ModuleID: "satya-enclave-v1"})
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = c.Validate(context.Background(), &model.AttestationDocument{ModuleID: "other"})
	require.Nil(t, err)
	assert.False(t, ok)

	_, err = c.Status(context.Background(), "broken")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "500")

	_, err = c.Status(context.Background(), "garbled")
	assert.True(t, errors.Is(err, ErrBadResponse))
}

func TestVerifierClient_WaitForCompletion(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/attestations/job-1/status", func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		st := StatusResult{Status: StatusProcessing, Progress: int(n) * 30}
		if n >= 3 {
			st = StatusResult{Status: StatusCompleted, Progress: 100, Attestation: &model.AttestationDocument{ModuleID: "m"}}
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	mux.HandleFunc("GET /api/v1/attestations/stuck/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(StatusResult{Status: StatusPending})
	})
	c, srv := newTestClient(t, mux, 100*time.Millisecond)
	defer srv.Close()

	st, err := c.WaitForCompletion(context.Background(), "job-1")
	require.Nil(t, err)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, int32(3), polls.Load())

	_, err = c.WaitForCompletion(context.Background(), "stuck")
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestNewVerifierClient_NotConfigured(t *testing.T) {
	_, err := NewVerifierClient(config.AttestationConfig{})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
