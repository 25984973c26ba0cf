/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// satya-server serves the encrypted asset marketplace over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/marketplace"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr, dbPath, logLevel string

	flagSet := pflag.NewFlagSet("satya-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	flagSet.StringVar(&dbPath, "db", "", "SQLite database path (overrides database.path)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetLevel(level)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Logger = logger
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	cfg.ApplyDefaults()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	market, err := marketplace.New(cfg, marketplace.Options{})
	if err != nil {
		return err
	}
	if err := market.Init(ctx); err != nil {
		return err
	}
	defer market.Close()
	go market.Run(ctx)

	srv, err := server.New(cfg, market)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
