/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/marketplace"
	"github.com/sirupsen/logrus"
)

// Server wires the HTTP listener and request handling stack.
type Server struct {
	cfg     config.ServerConfig
	handler *handler
	http    *http.Server
	logger  *logrus.Logger
}

// New constructs a Server over an initialized marketplace.
func New(cfg *config.Config, market *marketplace.Marketplace) (*Server, error) {
	if market == nil {
		return nil, errors.New("server requires a marketplace")
	}
	cfg.ApplyDefaults()
	logger := cfg.Logger

	h := newHandler(market, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:     cfg.Server,
		handler: h,
		http:    httpSrv,
		logger:  logger,
	}, nil
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Run Satya server on %s.", s.http.Addr)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully takes down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
