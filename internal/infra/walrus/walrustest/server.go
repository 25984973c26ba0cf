/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package walrustest provides an in-memory blob network node for tests.
package walrustest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server is a publisher and aggregator in one process. Blob ids are content addressed.
type Server struct {
	*httptest.Server

	mu                sync.Mutex
	blobs             map[string][]byte
	failUploads       int
	failDownloads     int
	failUploadAtIndex int
	uploads           int
	downloads         int
}

func NewServer() *Server {
	s := &Server{
		blobs:             make(map[string][]byte),
		failUploadAtIndex: -1,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// BlobID returns the id the server assigns to data.
func BlobID(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// FailNextUploads makes the next n uploads answer 503.
func (s *Server) FailNextUploads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUploads = n
}

// FailNextDownloads makes the next n downloads answer 503.
func (s *Server) FailNextDownloads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDownloads = n
}

// FailUploadAt makes the upload with the given zero-based sequence number fail permanently with 503.
func (s *Server) FailUploadAt(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUploadAtIndex = index
}

func (s *Server) Put(data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := BlobID(data)
	s.blobs[id] = append([]byte(nil), data...)
	return id
}

func (s *Server) Blob(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[id]
	return b, ok
}

func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Uploads counts successful uploads.
func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Downloads counts download requests, including failed ones.
func (s *Server) Downloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v1/api":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Path == "/v1/blobs":
		s.store(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/blobs/"):
		s.read(w, strings.TrimPrefix(r.URL.Path, "/v1/blobs/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	attempt := s.uploads
	if s.failUploads > 0 || attempt == s.failUploadAtIndex {
		if s.failUploads > 0 {
			s.failUploads--
		}
		s.mu.Unlock()
		http.Error(w, "publisher overloaded", http.StatusServiceUnavailable)
		return
	}
	id := BlobID(data)
	_, existed := s.blobs[id]
	s.blobs[id] = data
	s.uploads++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if existed {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"alreadyCertified": map[string]any{"blobId": id, "endEpoch": 10},
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"newlyCreated": map[string]any{
			"blobObject": map[string]any{
				"blobId":      id,
				"certificate": []byte("cert:" + id),
				"storage":     map[string]any{"endEpoch": 10},
			},
		},
	})
}

func (s *Server) read(w http.ResponseWriter, id string) {
	s.mu.Lock()
	s.downloads++
	if s.failDownloads > 0 {
		s.failDownloads--
		s.mu.Unlock()
		http.Error(w, "aggregator overloaded", http.StatusServiceUnavailable)
		return
	}
	data, ok := s.blobs[id]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "blob not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
