/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package walrus

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SeventhOdyssey71/Satya-sub004/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "satya-storage/blob-client"
	blobsPath        = "/v1/blobs"
	healthPath       = "/v1/api"
)

// UploadResult is the publisher's answer to a store request.
type UploadResult struct {
	BlobID      string
	Certificate []byte
	EndEpoch    uint64
	Existing    bool
}

// Health reports reachability of each blob network role.
type Health struct {
	Publisher  bool `json:"publisher"`
	Aggregator bool `json:"aggregator"`
}

// Client talks to a publisher for writes and an aggregator for reads.
// Fallback nodes serve reads when the aggregator keeps failing.
type Client struct {
	publisher  *url.URL
	aggregator *url.URL
	fallbacks  []*url.URL
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(cfg config.StorageConfig) (*Client, error) {
	if cfg.PublisherURL == "" || cfg.AggregatorURL == "" {
		return nil, ErrNotConfigured
	}

	publisher, err := url.Parse(cfg.PublisherURL)
	if err != nil {
		return nil, fmt.Errorf("parse publisher URL: %w", err)
	}
	aggregator, err := url.Parse(cfg.AggregatorURL)
	if err != nil {
		return nil, fmt.Errorf("parse aggregator URL: %w", err)
	}
	fallbacks := make([]*url.URL, 0, len(cfg.FallbackURLs))
	for _, raw := range cfg.FallbackURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse fallback URL %q: %w", raw, err)
		}
		fallbacks = append(fallbacks, u)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		publisher:  publisher,
		aggregator: aggregator,
		fallbacks:  fallbacks,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}, nil
}

type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID      string `json:"blobId"`
			Certificate []byte `json:"certificate,omitempty"`
			Storage     struct {
				EndEpoch uint64 `json:"endEpoch"`
			} `json:"storage"`
		} `json:"blobObject"`
	} `json:"newlyCreated,omitempty"`
	AlreadyCertified *struct {
		BlobID   string `json:"blobId"`
		EndEpoch uint64 `json:"endEpoch"`
	} `json:"alreadyCertified,omitempty"`
}

// Upload stores data for the given number of epochs.
func (c *Client) Upload(ctx context.Context, data []byte, epochs uint32) (*UploadResult, error) {
	u := c.publisher.JoinPath(blobsPath)
	query := u.Query()
	query.Set("epochs", strconv.FormatUint(uint64(epochs), 10))
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: perform upload request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "upload"); err != nil {
		return nil, err
	}

	var body storeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode upload response: %v", ErrBadResponse, err)
	}

	switch {
	case body.NewlyCreated != nil && body.NewlyCreated.BlobObject.BlobID != "":
		obj := body.NewlyCreated.BlobObject
		return &UploadResult{
			BlobID:      obj.BlobID,
			Certificate: obj.Certificate,
			EndEpoch:    obj.Storage.EndEpoch,
		}, nil
	case body.AlreadyCertified != nil && body.AlreadyCertified.BlobID != "":
		c.logger.WithField("blob_id", body.AlreadyCertified.BlobID).Debug("blob already certified")
		return &UploadResult{
			BlobID:   body.AlreadyCertified.BlobID,
			EndEpoch: body.AlreadyCertified.EndEpoch,
			Existing: true,
		}, nil
	default:
		return nil, fmt.Errorf("%w: upload response carries no blob id", ErrBadResponse)
	}
}

// Download reads a whole blob from the aggregator.
func (c *Client) Download(ctx context.Context, blobID string) ([]byte, error) {
	return c.DownloadFrom(ctx, c.aggregator.String(), blobID)
}

// DownloadFrom reads a whole blob from the node at baseURL.
func (c *Client) DownloadFrom(ctx context.Context, baseURL, blobID string) ([]byte, error) {
	rc, err := c.open(ctx, baseURL, blobID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %v", ErrUnavailable, blobID, err)
	}
	return data, nil
}

// Open starts a streaming read of a blob from the aggregator. The caller closes the reader.
func (c *Client) Open(ctx context.Context, blobID string) (io.ReadCloser, error) {
	return c.open(ctx, c.aggregator.String(), blobID)
}

func (c *Client) open(ctx context.Context, baseURL, blobID string) (io.ReadCloser, error) {
	if blobID == "" {
		return nil, fmt.Errorf("%w: empty blob id", ErrRequestRejected)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse node URL: %w", err)
	}
	u := base.JoinPath(blobsPath, blobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: perform download request: %v", ErrUnavailable, err)
	}
	if err := checkStatus(resp, "download"); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// FallbackNodes returns the alternative read endpoints, all equally weighted.
func (c *Client) FallbackNodes() []string {
	nodes := make([]string, len(c.fallbacks))
	for i, u := range c.fallbacks {
		nodes[i] = u.String()
	}
	return nodes
}

// Health probes the publisher and aggregator.
func (c *Client) Health(ctx context.Context) Health {
	return Health{
		Publisher:  c.probe(ctx, c.publisher),
		Aggregator: c.probe(ctx, c.aggregator),
	}
}

func (c *Client) probe(ctx context.Context, base *url.URL) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.JoinPath(healthPath).String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithField("node", base.String()).Debugf("health probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	body = bytes.TrimSpace(body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s status %s: %s", ErrBlobNotFound, op, resp.Status, body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s status %s: %s", ErrUnavailable, op, resp.Status, body)
	default:
		return fmt.Errorf("%w: %s status %s: %s", ErrRequestRejected, op, resp.Status, body)
	}
}
