/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	MiB = 1 << 20

	DefaultAddr                 = ":8080"
	DefaultDatabasePath         = "satya_state.db"
	DefaultEpochs               = 5
	DefaultEpochDuration        = 24 * time.Hour
	DefaultDirectUploadLimit    = 10 * MiB
	DefaultMinChunkSize         = 1 * MiB
	DefaultMaxChunkSize         = 50 * MiB
	DefaultMaxFileSize          = 100 * MiB
	DefaultDownloadConcurrency  = 4
	DefaultBlobTimeout          = 60 * time.Second
	DefaultMaxRetries           = 3
	DefaultBaseDelay            = time.Second
	DefaultMaxDelay             = 30 * time.Second
	DefaultMaxJitter            = time.Second
	DefaultCacheTTL             = 1800 * time.Second
	DefaultCacheMaxBytes        = 100 * MiB
	DefaultMaxPayloadSize       = 100 * MiB
	SealOverhead                = 16 // AES-GCM tag carried by every sealed payload
	DefaultDEKCacheCapacity     = 256
	DefaultSessionTTL           = 60 * time.Minute
	DefaultSessionSweepInterval = 5 * time.Minute
	DefaultAttestationTimeout   = 30 * time.Second
	DefaultAttestationWaitLimit = 2 * time.Minute
	DefaultEnclaveID            = "satya-enclave-v1"
)

// Config is the complete runtime configuration of the marketplace service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Retry       RetryConfig       `yaml:"retry"`
	Cache       CacheConfig       `yaml:"cache"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
	Session     SessionConfig     `yaml:"session"`
	Attestation AttestationConfig `yaml:"attestation"`

	Logger *logrus.Logger `yaml:"-"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig captures the blob network endpoints and upload tunables.
type StorageConfig struct {
	PublisherURL        string        `yaml:"publisher_url"`
	AggregatorURL       string        `yaml:"aggregator_url"`
	FallbackURLs        []string      `yaml:"fallback_urls"`
	InsecureTLS         bool          `yaml:"insecure_tls"`
	Timeout             time.Duration `yaml:"timeout"`
	DefaultEpochs       uint32        `yaml:"default_epochs"`
	EpochDuration       time.Duration `yaml:"epoch_duration"`
	DirectUploadLimit   int64         `yaml:"direct_upload_limit"`
	MinChunkSize        int64         `yaml:"min_chunk_size"`
	MaxChunkSize        int64         `yaml:"max_chunk_size"`
	MaxFileSize         int64         `yaml:"max_file_size"`
	AllowedExtensions   []string      `yaml:"allowed_extensions"`
	DownloadConcurrency int           `yaml:"download_concurrency"`

	Logger *logrus.Logger `yaml:"-"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	MaxJitter  time.Duration `yaml:"max_jitter"`

	Logger *logrus.Logger `yaml:"-"`
}

type CacheConfig struct {
	MaxSizeBytes int64         `yaml:"max_size_bytes"`
	TTL          time.Duration `yaml:"ttl"`

	Logger *logrus.Logger `yaml:"-"`
}

// EncryptionConfig configures the payload encryption layer.
// MasterKey is the hex encoded secret used to wrap DEKs at rest.
type EncryptionConfig struct {
	MasterKey        string        `yaml:"master_key"`
	MaxPayloadSize   int64         `yaml:"max_payload_size"`
	DEKCacheCapacity int           `yaml:"dek_cache_capacity"`
	DEKCacheTTL      time.Duration `yaml:"dek_cache_ttl"`

	Logger *logrus.Logger `yaml:"-"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TokenSecret   string        `yaml:"token_secret"`

	Logger *logrus.Logger `yaml:"-"`
}

// AttestationConfig configures the attestation service client and the
// local document validator.
type AttestationConfig struct {
	BaseURL       string        `yaml:"base_url"`
	InsecureTLS   bool          `yaml:"insecure_tls"`
	Timeout       time.Duration `yaml:"timeout"`
	WaitLimit     time.Duration `yaml:"wait_limit"`
	EnclaveID     string        `yaml:"enclave_id"`
	KnownPCRsPath string        `yaml:"known_pcrs_path"`
	RootCertsPath string        `yaml:"root_certs_path"`

	Logger *logrus.Logger `yaml:"-"`
}

// Load reads a YAML configuration file and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every zero-valued tunable and propagates the logger
// to each section.
func (c *Config) ApplyDefaults() {
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}

	c.Storage.Logger = c.Logger
	c.Retry.Logger = c.Logger
	c.Cache.Logger = c.Logger
	c.Encryption.Logger = c.Logger
	c.Session.Logger = c.Logger
	c.Attestation.Logger = c.Logger

	c.Encryption.ApplyDefaults()
	// Stored files are sealed payloads, so the file limit must admit the
	// largest payload plus its tag.
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = c.Encryption.MaxPayloadSize + SealOverhead
	}
	c.Storage.ApplyDefaults()
	c.Retry.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Session.ApplyDefaults()
	c.Attestation.ApplyDefaults()
}

func (c *StorageConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultBlobTimeout
	}
	if c.DefaultEpochs == 0 {
		c.DefaultEpochs = DefaultEpochs
	}
	if c.EpochDuration == 0 {
		c.EpochDuration = DefaultEpochDuration
	}
	if c.DirectUploadLimit == 0 {
		c.DirectUploadLimit = DefaultDirectUploadLimit
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.AllowedExtensions == nil {
		c.AllowedExtensions = []string{
			"json", "model", "csv", "data", "txt", "pdf",
			"onnx", "pt", "bin", "safetensors", "parquet", "npy",
		}
	}
	if c.DownloadConcurrency <= 0 {
		c.DownloadConcurrency = DefaultDownloadConcurrency
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

func (c *RetryConfig) ApplyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxJitter == 0 {
		c.MaxJitter = DefaultMaxJitter
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

func (c *CacheConfig) ApplyDefaults() {
	if c.MaxSizeBytes <= 0 {
		c.MaxSizeBytes = DefaultCacheMaxBytes
	}
	if c.TTL == 0 {
		c.TTL = DefaultCacheTTL
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

func (c *EncryptionConfig) ApplyDefaults() {
	if c.MaxPayloadSize <= 0 {
		c.MaxPayloadSize = DefaultMaxPayloadSize
	}
	if c.DEKCacheCapacity <= 0 {
		c.DEKCacheCapacity = DefaultDEKCacheCapacity
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

func (c *SessionConfig) ApplyDefaults() {
	if c.TTL == 0 {
		c.TTL = DefaultSessionTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSessionSweepInterval
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

func (c *AttestationConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultAttestationTimeout
	}
	if c.WaitLimit == 0 {
		c.WaitLimit = DefaultAttestationWaitLimit
	}
	if c.EnclaveID == "" {
		c.EnclaveID = DefaultEnclaveID
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}
