/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/marketplace"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/verification"
	"github.com/sirupsen/logrus"
)

const (
	maxRequestBodyBytes = 1 << 20 // attestation documents are a few KiB
	defaultExpiryDays   = 7
	assetsPrefix        = "/api/assets/"
)

type handler struct {
	market *marketplace.Marketplace
	logger *logrus.Logger
}

type responseSpec struct {
	status      int
	body        []byte
	contentType string
}

func newHandler(market *marketplace.Marketplace, logger *logrus.Logger) *handler {
	return &handler{
		market: market,
		logger: logger,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/health":
		h.only(w, r, http.MethodGet, h.health)
	case r.URL.Path == "/api/purchases/verify":
		h.only(w, r, http.MethodPost, h.verifyPurchase)
	case r.URL.Path == "/api/blobs/expiring":
		h.only(w, r, http.MethodGet, h.expiringBlobs)
	case strings.HasPrefix(r.URL.Path, assetsPrefix):
		h.only(w, r, http.MethodGet, h.getAsset)
	default:
		http.NotFound(w, r)
	}
}

func (h *handler) only(w http.ResponseWriter, r *http.Request, method string, next http.HandlerFunc) {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	health, err := h.market.Health(r.Context())
	if err != nil {
		h.logger.Errorf("health check failed: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusServiceUnavailable})
		return
	}
	status := http.StatusOK
	if !health.Storage.Publisher || !health.Storage.Aggregator {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, health)
}

type verifyPurchaseRequest struct {
	AssetID          string                     `json:"assetId"`
	PurchaseRecordID string                     `json:"purchaseRecordId"`
	Buyer            string                     `json:"buyer"`
	AttestationID    string                     `json:"attestationId"`
	Attestation      *model.AttestationDocument `json:"attestation,omitempty"`
}

type verifyPurchaseResponse struct {
	Success    bool                     `json:"success"`
	Steps      []model.VerificationStep `json:"steps"`
	AccessKeys *model.AccessKeys        `json:"accessKeys,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

func (h *handler) verifyPurchase(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		h.logger.Debugf("content type mismatch: expected application/json, actual %v", r.Header.Get("Content-Type"))
		http.Error(w, "This endpoint only accepts Content-Type: application/json", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		h.logger.Warnf("failed reading request body: %v", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if err := r.Body.Close(); err != nil {
		h.logger.Warnf("failed closing request body: %v", err)
		http.Error(w, "failed to close request body", http.StatusBadRequest)
		return
	}

	var req verifyPurchaseRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed verification request", http.StatusBadRequest)
		return
	}
	if req.AssetID == "" || req.PurchaseRecordID == "" || req.Buyer == "" {
		http.Error(w, "assetId, purchaseRecordId and buyer are required", http.StatusBadRequest)
		return
	}

	res, err := h.market.VerifyPurchase(r.Context(), marketplace.VerifyRequest{
		AssetID:          req.AssetID,
		PurchaseRecordID: req.PurchaseRecordID,
		Buyer:            req.Buyer,
		AttestationID:    req.AttestationID,
		Attestation:      req.Attestation,
	}, nil)

	var stepErr *verification.StepError
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, verifyPurchaseResponse{Success: true, Steps: res.Steps, AccessKeys: res.AccessKeys})
	case errors.As(err, &stepErr):
		h.writeJSON(w, http.StatusForbidden, verifyPurchaseResponse{Steps: res.Steps, Error: res.Error})
	case errors.Is(err, marketplace.ErrAssetNotFound), errors.Is(err, marketplace.ErrPurchaseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, marketplace.ErrPurchaseMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Errorf("purchase verification error: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
	}
}

func (h *handler) expiringBlobs(w http.ResponseWriter, r *http.Request) {
	days := defaultExpiryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = n
	}

	blobs, err := h.market.ExpiringBlobs(r.Context(), days)
	if err != nil {
		h.logger.Errorf("listing expiring blobs failed: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	if blobs == nil {
		blobs = []*model.BlobMetadata{}
	}
	h.writeJSON(w, http.StatusOK, blobs)
}

func (h *handler) getAsset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, assetsPrefix)
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	asset, err := h.market.GetAsset(r.Context(), id)
	if errors.Is(err, marketplace.ErrAssetNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Errorf("asset lookup failed: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Errorf("failed encoding response: %v", err)
		h.writeResponse(w, responseSpec{status: http.StatusInternalServerError})
		return
	}
	h.writeResponse(w, responseSpec{
		status:      status,
		body:        body,
		contentType: "application/json",
	})
}

func (h *handler) writeResponse(w http.ResponseWriter, spec responseSpec) {
	if len(spec.body) > 0 {
		for k, v := range defaultHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", spec.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(spec.body)))
		w.WriteHeader(spec.status)
		if _, err := w.Write(spec.body); err != nil {
			h.logger.Warnf("failed writing response body: %v", err)
		}
		return
	}

	w.WriteHeader(spec.status)
}

var defaultHeaders = map[string]string{
	"Cache-Control":           "no-store",
	"X-Content-Type-Options":  "nosniff",
	"Content-Security-Policy": "default-src 'none'",
	"Referrer-Policy":         "no-referrer",
}
