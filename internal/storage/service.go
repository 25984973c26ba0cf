/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/cache"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/chunker"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/model"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/domain/service"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/infra/walrus"
	"github.com/SeventhOdyssey71/Satya-sub004/internal/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const streamReadSize = 64 << 10

// BlobNetwork is the remote blob store.
type BlobNetwork interface {
	Upload(ctx context.Context, data []byte, epochs uint32) (*walrus.UploadResult, error)
	Download(ctx context.Context, blobID string) ([]byte, error)
	DownloadFrom(ctx context.Context, node, blobID string) ([]byte, error)
	Open(ctx context.Context, blobID string) (io.ReadCloser, error)
	FallbackNodes() []string
	Health(ctx context.Context) walrus.Health
}

// File is a named byte payload to store.
type File struct {
	Name string
	Data []byte
}

// UploadOptions tune a single upload. Zero Epochs selects the configured default.
type UploadOptions struct {
	Epochs       uint32
	ForceChunked bool
	OnProgress   func(percent float64)
	Envelope     bool
}

type UploadResult struct {
	BlobID   string
	Chunked  bool
	Metadata *model.BlobMetadata
	Manifest *model.ChunkedUploadManifest
}

type DownloadOptions struct {
	ForceRefresh bool
	OpenEnvelope bool
}

// Service uploads and downloads files against the blob network. Large files
// are split into chunks referenced by a manifest blob.
type Service struct {
	network  BlobNetwork
	registry service.BlobMetadataRepository
	cache    *cache.Manager
	retry    *retry.Manager
	cfg      config.StorageConfig
	now      func() time.Time
	logger   *logrus.Logger
}

// NewService wires the storage service. A nil registry selects an in-memory one.
func NewService(cfg config.StorageConfig, network BlobNetwork, registry service.BlobMetadataRepository, c *cache.Manager, r *retry.Manager) *Service {
	cfg.ApplyDefaults()
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	return &Service{
		network:  network,
		registry: registry,
		cache:    c,
		retry:    r,
		cfg:      cfg,
		now:      time.Now,
		logger:   cfg.Logger,
	}
}

// ValidateFile checks size limits and, when the file is named, its extension.
func (s *Service) ValidateFile(f File) error {
	return s.ValidateSize(f.Name, int64(len(f.Data)))
}

// ValidateSize applies the ValidateFile checks to a file of the given name and
// size before its content exists.
func (s *Service) ValidateSize(name string, size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, s.cfg.MaxFileSize)
	}
	if name == "" {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, name)
	}
	return nil
}

// UploadFile stores f directly, or chunked when it is larger than the direct
// upload limit or opts.ForceChunked is set. For chunked uploads the returned
// BlobID is the manifest's.
func (s *Service) UploadFile(ctx context.Context, f File, opts UploadOptions) (*UploadResult, error) {
	if err := s.ValidateFile(f); err != nil {
		return nil, err
	}
	epochs := opts.Epochs
	if epochs == 0 {
		epochs = s.cfg.DefaultEpochs
	}

	data := f.Data
	if opts.Envelope {
		sealed, err := SealEnvelope(data)
		if err != nil {
			return nil, err
		}
		data = sealed
	}

	if opts.ForceChunked || int64(len(data)) > s.cfg.DirectUploadLimit {
		return s.uploadChunked(ctx, f.Name, data, epochs, opts.OnProgress)
	}
	return s.uploadDirect(ctx, f.Name, data, epochs, opts.OnProgress)
}

func (s *Service) uploadDirect(ctx context.Context, name string, data []byte, epochs uint32, onProgress func(float64)) (*UploadResult, error) {
	report(onProgress, 0)
	res, err := s.uploadBlob(ctx, data, epochs)
	if err != nil {
		return nil, err
	}
	meta, err := s.register(ctx, res, int64(len(data)), name, epochs)
	if err != nil {
		return nil, err
	}
	report(onProgress, 100)

	s.logger.WithFields(logrus.Fields{
		"blob_id": res.BlobID,
		"size":    len(data),
	}).Info("blob uploaded")
	return &UploadResult{BlobID: res.BlobID, Metadata: meta}, nil
}

func (s *Service) uploadChunked(ctx context.Context, name string, data []byte, epochs uint32, onProgress func(float64)) (*UploadResult, error) {
	chunkSize := chunker.OptimalChunkSizeBounded(int64(len(data)), s.cfg.MinChunkSize, s.cfg.MaxChunkSize)
	chunks, err := chunker.Chunk(data, chunkSize)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.uploadBlob(ctx, c, epochs)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"chunk": i,
				"total": len(chunks),
			}).Errorf("chunk upload failed, aborting: %v", err)
			return nil, &ChunkUploadError{Index: i, Err: err}
		}
		ids = append(ids, res.BlobID)
		report(onProgress, float64(i+1)/float64(len(chunks))*100)
	}

	manifest := chunker.BuildManifest(name, int64(len(data)), ids, chunkSize, s.now())
	raw, err := chunker.EncodeManifest(manifest)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := s.uploadBlob(ctx, raw, epochs)
	if err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}
	meta, err := s.register(ctx, res, int64(len(data)), name, epochs)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"manifest_id": res.BlobID,
		"chunks":      len(ids),
		"chunk_size":  chunkSize,
	}).Info("chunked file uploaded")
	return &UploadResult{BlobID: res.BlobID, Chunked: true, Metadata: meta, Manifest: manifest}, nil
}

func (s *Service) uploadBlob(ctx context.Context, data []byte, epochs uint32) (*walrus.UploadResult, error) {
	return retry.Execute(ctx, s.retry, func(ctx context.Context) (*walrus.UploadResult, error) {
		res, err := s.network.Upload(ctx, data, epochs)
		if errors.Is(err, walrus.ErrRequestRejected) || errors.Is(err, walrus.ErrBadResponse) {
			return nil, retry.Permanent(err)
		}
		return res, err
	})
}

func (s *Service) register(ctx context.Context, res *walrus.UploadResult, size int64, name string, epochs uint32) (*model.BlobMetadata, error) {
	now := s.now().UTC()
	meta := &model.BlobMetadata{
		BlobID:      res.BlobID,
		Size:        size,
		Name:        name,
		UploadedAt:  now,
		ExpiresAt:   now.Add(time.Duration(epochs) * s.cfg.EpochDuration),
		Epochs:      epochs,
		Certificate: res.Certificate,
	}
	if err := s.registry.Create(ctx, meta); err != nil {
		return nil, fmt.Errorf("register blob %s: %w", res.BlobID, err)
	}
	return meta, nil
}

// DownloadBlob returns a blob from the cache, the aggregator, or one of the
// fallback nodes, in that order. Missing blobs are not retried.
func (s *Service) DownloadBlob(ctx context.Context, blobID string, opts DownloadOptions) ([]byte, error) {
	data, err := s.fetch(ctx, blobID, opts.ForceRefresh)
	if err != nil {
		return nil, err
	}
	if !opts.OpenEnvelope {
		return data, nil
	}
	plain, _, err := OpenEnvelope(data, s.logger)
	return plain, err
}

func (s *Service) fetch(ctx context.Context, blobID string, forceRefresh bool) ([]byte, error) {
	if !forceRefresh {
		if data, ok := s.cache.Get(blobID); ok {
			return data, nil
		}
	}

	data, err := retry.Execute(ctx, s.retry, func(ctx context.Context) ([]byte, error) {
		data, err := s.network.Download(ctx, blobID)
		if errors.Is(err, walrus.ErrBlobNotFound) || errors.Is(err, walrus.ErrRequestRejected) {
			return nil, retry.Permanent(err)
		}
		return data, err
	})
	if err != nil && !errors.Is(err, walrus.ErrBlobNotFound) && ctx.Err() == nil {
		data, err = s.fetchFromFallbacks(ctx, blobID, err)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(blobID, data)
	return data, nil
}

func (s *Service) fetchFromFallbacks(ctx context.Context, blobID string, primaryErr error) ([]byte, error) {
	nodes := s.network.FallbackNodes()
	rand.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
	for _, node := range nodes {
		if ctx.Err() != nil {
			break
		}
		data, err := s.network.DownloadFrom(ctx, node, blobID)
		if err == nil {
			s.logger.WithFields(logrus.Fields{
				"blob_id": blobID,
				"node":    node,
			}).Info("blob served by fallback node")
			return data, nil
		}
		s.logger.WithFields(logrus.Fields{
			"blob_id": blobID,
			"node":    node,
		}).Warnf("fallback download failed: %v", err)
	}
	return nil, primaryErr
}

// DownloadManifest fetches and parses the manifest of a chunked file.
func (s *Service) DownloadManifest(ctx context.Context, manifestBlobID string) (*model.ChunkedUploadManifest, error) {
	raw, err := s.fetch(ctx, manifestBlobID, false)
	if err != nil {
		return nil, err
	}
	m, err := chunker.ParseManifest(raw)
	if err != nil {
		s.cache.Delete(manifestBlobID)
		return nil, err
	}
	return m, nil
}

// DownloadChunkedFile fetches every chunk listed by the manifest and
// reassembles them in manifest order. Chunks are fetched concurrently.
func (s *Service) DownloadChunkedFile(ctx context.Context, manifestBlobID string, opts DownloadOptions) ([]byte, error) {
	m, err := s.DownloadManifest(ctx, manifestBlobID)
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, len(m.ChunkIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DownloadConcurrency)
	for i, id := range m.ChunkIDs {
		g.Go(func() error {
			data, err := s.fetch(gctx, id, opts.ForceRefresh)
			if err != nil {
				return fmt.Errorf("download chunk %d (%s): %w", i, id, err)
			}
			chunks[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := chunker.VerifyChunks(m, chunks); err != nil {
		return nil, err
	}

	data := chunker.Reassemble(chunks)
	if !opts.OpenEnvelope {
		return data, nil
	}
	plain, _, err := OpenEnvelope(data, s.logger)
	return plain, err
}

// StreamDownload returns a forward-only sequence of the blob's bytes. The
// blob is read on demand; a second iteration yields ErrStreamConsumed.
func (s *Service) StreamDownload(ctx context.Context, blobID string) iter.Seq2[[]byte, error] {
	var consumed atomic.Bool
	return func(yield func([]byte, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrStreamConsumed)
			return
		}

		rc, err := retry.Execute(ctx, s.retry, func(ctx context.Context) (io.ReadCloser, error) {
			rc, err := s.network.Open(ctx, blobID)
			if errors.Is(err, walrus.ErrBlobNotFound) {
				return nil, retry.Permanent(err)
			}
			return rc, err
		})
		if err != nil {
			yield(nil, err)
			return
		}
		defer rc.Close()

		buf := make([]byte, streamReadSize)
		for {
			n, err := rc.Read(buf)
			if n > 0 {
				if !yield(append([]byte(nil), buf[:n]...), nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("stream blob %s: %w", blobID, err))
				return
			}
		}
	}
}

// GetExpiringBlobs lists registered blobs that expire within the next days.
func (s *Service) GetExpiringBlobs(ctx context.Context, days int) ([]*model.BlobMetadata, error) {
	days = max(days, 0)
	now := s.now().UTC()
	return s.registry.ListExpiringBetween(ctx, now, now.Add(time.Duration(days)*24*time.Hour))
}

func (s *Service) GetBlobMetadata(ctx context.Context, blobID string) (*model.BlobMetadata, error) {
	m, err := s.registry.FindByBlobID(ctx, blobID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotRegistered, blobID)
	}
	return m, nil
}

// EvictBlob forgets a blob locally. The blob network copy is unaffected.
func (s *Service) EvictBlob(ctx context.Context, blobID string) error {
	s.cache.Delete(blobID)
	return s.registry.Delete(ctx, blobID)
}

func (s *Service) Health(ctx context.Context) walrus.Health {
	return s.network.Health(ctx)
}

func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func report(onProgress func(float64), percent float64) {
	if onProgress != nil {
		onProgress(percent)
	}
}
