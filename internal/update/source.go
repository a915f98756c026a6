package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Manifest is the published description of the newest release.
type Manifest struct {
	Version     string    `json:"version"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// ReleaseSource reports the newest available release.
type ReleaseSource interface {
	LatestRelease(ctx context.Context) (Manifest, error)
}

// HTTPReleaseSource fetches the release manifest from a distribution
// endpoint.
type HTTPReleaseSource struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPReleaseSource configures manifest fetches from url.
func NewHTTPReleaseSource(url, apiKey string, timeout time.Duration) *HTTPReleaseSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &HTTPReleaseSource{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// LatestRelease fetches and decodes the manifest.
func (s *HTTPReleaseSource) LatestRelease(ctx context.Context) (Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("build manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Manifest{}, fmt.Errorf("fetch manifest: http %d", resp.StatusCode)
	}

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.TrimSpace(manifest.Version) == "" {
		return Manifest{}, fmt.Errorf("manifest has no version")
	}
	return manifest, nil
}
