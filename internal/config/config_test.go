/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.Nil(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, int64(10*MiB), cfg.Storage.DirectUploadLimit)
	assert.Equal(t, 1800*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, int64(100*MiB), cfg.Encryption.MaxPayloadSize)
	assert.NotNil(t, cfg.Logger)
	assert.Same(t, cfg.Logger, cfg.Storage.Logger)
	assert.Contains(t, cfg.Storage.AllowedExtensions, "safetensors")
	assert.Equal(t, cfg.Encryption.MaxPayloadSize+SealOverhead, cfg.Storage.MaxFileSize)
}

func TestApplyDefaults_FileLimitFollowsPayloadLimit(t *testing.T) {
	cfg := &Config{Encryption: EncryptionConfig{MaxPayloadSize: 1 << 10}}
	cfg.ApplyDefaults()
	assert.Equal(t, int64(1<<10+SealOverhead), cfg.Storage.MaxFileSize)

	cfg = &Config{Storage: StorageConfig{MaxFileSize: 512}}
	cfg.ApplyDefaults()
	assert.Equal(t, int64(512), cfg.Storage.MaxFileSize)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satya.yaml")
	raw := `
server:
  addr: "127.0.0.1:9000"
storage:
  publisher_url: "http://publisher.local"
  aggregator_url: "http://aggregator.local"
  fallback_urls:
    - "http://node-a.local"
    - "http://node-b.local"
  direct_upload_limit: 2048
retry:
  max_retries: 5
  base_delay: 250ms
cache:
  ttl: 10m
attestation:
  enclave_id: "custom-enclave"
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load(path)
	require.Nil(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "http://publisher.local", cfg.Storage.PublisherURL)
	assert.Equal(t, []string{"http://node-a.local", "http://node-b.local"}, cfg.Storage.FallbackURLs)
	assert.Equal(t, int64(2048), cfg.Storage.DirectUploadLimit)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "custom-enclave", cfg.Attestation.EnclaveID)
	// untouched sections still get defaults
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	_, err := Load(path)
	assert.NotNil(t, err)
}
