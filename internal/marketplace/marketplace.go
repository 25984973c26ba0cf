/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/cache"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/encryption"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/rats"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/sqlite"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/walrus"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/policy"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/retry"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/session"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/storage"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/verification"
	"github.com/sirupsen/logrus"
)

// Options replaces the remote collaborators built from configuration.
type Options struct {
	Network   storage.BlobNetwork
	Verifier  rats.Verifier
	Validator *verification.Validator
}

// Marketplace publishes encrypted assets, records purchases and releases
// assets to verified buyers.
type Marketplace struct {
	cfg       *config.Config
	network   storage.BlobNetwork
	verifier  rats.Verifier
	validator *verification.Validator
	logger    *logrus.Logger

	db         *sql.DB
	assets     *sqlite.AssetRepository
	purchases  *sqlite.PurchaseRecordRepository
	sessions   *session.Manager
	storage    *storage.Service
	encryption *encryption.Service
	pipeline   *verification.Pipeline
}

// New builds a Marketplace. Collaborators missing from opts are created from cfg.
func New(cfg *config.Config, opts Options) (*Marketplace, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.ApplyDefaults()

	m := &Marketplace{
		cfg:       cfg,
		network:   opts.Network,
		verifier:  opts.Verifier,
		validator: opts.Validator,
		logger:    cfg.Logger,
	}
	if m.network == nil {
		c, err := walrus.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("blob network client: %w", err)
		}
		m.network = c
	}
	if m.verifier == nil {
		c, err := rats.NewVerifierClient(cfg.Attestation)
		switch {
		case errors.Is(err, rats.ErrNotConfigured):
			m.logger.Warn("attestation service not configured, purchase verification will fail")
			m.verifier = unconfiguredVerifier{}
		case err != nil:
			return nil, fmt.Errorf("attestation client: %w", err)
		default:
			m.verifier = c
		}
	}
	if m.validator == nil {
		v, err := verification.NewValidator(cfg.Attestation)
		if err != nil {
			return nil, fmt.Errorf("attestation validator: %w", err)
		}
		m.validator = v
	}
	return m, nil
}

// Init opens the configured database and wires the services.
func (m *Marketplace) Init(ctx context.Context) error {
	return m.InitWithPath(ctx, m.cfg.Database.Path)
}

func (m *Marketplace) InitWithPath(ctx context.Context, dbPath string) error {
	db, err := sqlite.InitDB(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	sessions, err := session.NewManager(m.cfg.Session)
	if err != nil {
		_ = sqlite.CloseDB(db)
		return err
	}
	purchases := sqlite.NewPurchaseRecordRepository(db)
	enc, err := encryption.NewService(
		m.cfg.Encryption,
		policy.NewEngine(purchases, m.logger),
		sqlite.NewPolicyRepository(db),
		purchases,
		sessions,
	)
	if err != nil {
		_ = sqlite.CloseDB(db)
		return err
	}
	store := storage.NewService(
		m.cfg.Storage,
		m.network,
		sqlite.NewBlobMetadataRepository(db),
		cache.NewManager(m.cfg.Cache),
		retry.NewManager(m.cfg.Retry),
	)

	m.db = db
	m.assets = sqlite.NewAssetRepository(db)
	m.purchases = purchases
	m.sessions = sessions
	m.encryption = enc
	m.storage = store
	m.pipeline = verification.NewPipeline(m.verifier, m.validator, store, enc, m.logger)
	return nil
}

// Run sweeps expired sessions until ctx is done.
func (m *Marketplace) Run(ctx context.Context) {
	if m.sessions == nil {
		return
	}
	m.sessions.Run(ctx)
}

// Close closes the database connection.
func (m *Marketplace) Close() error {
	if m.db != nil {
		err := sqlite.CloseDB(m.db)
		m.db = nil
		return err
	}
	return nil
}

func (m *Marketplace) ready() error {
	if m.db == nil {
		return ErrNotInitialized
	}
	return nil
}

func (m *Marketplace) Storage() *storage.Service {
	return m.storage
}

func (m *Marketplace) Encryption() *encryption.Service {
	return m.encryption
}

func (m *Marketplace) Sessions() *session.Manager {
	return m.sessions
}

type unconfiguredVerifier struct{}

func (unconfiguredVerifier) Verify(context.Context, string, string) (*rats.VerifyResult, error) {
	return nil, rats.ErrNotConfigured
}
