package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	bunnyBackend       = "bunny"
	bunnyDefaultRegion = "de"
	maxErrorBody       = 64 << 10
)

// BunnyStore writes objects into a Bunny storage zone.
type BunnyStore struct {
	client    *http.Client
	endpoint  string
	zone      string
	accessKey string
}

// BunnyOption configures a BunnyStore.
type BunnyOption func(*BunnyStore)

// WithHTTPClient replaces the HTTP client used for uploads.
func WithHTTPClient(c *http.Client) BunnyOption {
	return func(s *BunnyStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEndpoint overrides the storage API base URL derived from the region.
func WithEndpoint(endpoint string) BunnyOption {
	return func(s *BunnyStore) {
		if endpoint != "" {
			s.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// NewBunnyStore returns a store for the given zone. Empty values are passed
// through as-is; Bunny itself rejects them.
func NewBunnyStore(zone, region, accessKey string, opts ...BunnyOption) *BunnyStore {
	s := &BunnyStore{
		client:    &http.Client{Timeout: DefaultPutTimeout},
		endpoint:  BunnyEndpoint(region),
		zone:      zone,
		accessKey: accessKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BunnyEndpoint returns the storage API base URL for a region. The primary
// Falkenstein region ("de") has no prefix.
func BunnyEndpoint(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" || region == bunnyDefaultRegion {
		return "https://storage.bunnycdn.com"
	}
	return "https://" + region + ".storage.bunnycdn.com"
}

func (s *BunnyStore) Backend() string { return bunnyBackend }

// URL is the storage API address an object is written to.
func (s *BunnyStore) URL(name string) string {
	return s.endpoint + "/" + s.zone + "/" + name
}

// Put uploads obj with a single PUT.
func (s *BunnyStore) Put(ctx context.Context, obj Object) (err error) {
	ctx, span := startSpan(ctx, bunnyBackend, obj)
	defer func() { endSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.URL(obj.Name), bytes.NewReader(obj.Body))
	if err != nil {
		return fmt.Errorf("build bunny request: %w", err)
	}
	req.ContentLength = int64(len(obj.Body))
	req.Header.Set("AccessKey", s.accessKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Checksum", bunnyChecksum(obj.Body))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("bunny put %s: %w", obj.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{
			Backend:    bunnyBackend,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
