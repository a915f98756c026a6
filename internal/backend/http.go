package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"fitsync/internal/models"
)

const httpRequestTimeout = 10 * time.Second

// HTTPDeliverer posts actions to a real backend endpoint. This is what
// production installs use in place of the simulator.
type HTTPDeliverer struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPDeliverer configures delivery against baseURL/actions.
func NewHTTPDeliverer(baseURL, apiKey string) *HTTPDeliverer {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPDeliverer{
		url:    strings.TrimSuffix(baseURL, "/") + "/actions",
		apiKey: apiKey,
		client: &http.Client{Transport: transport, Timeout: httpRequestTimeout},
	}
}

// Deliver posts the action as JSON. Any non-2xx status is a failure.
func (d *HTTPDeliverer) Deliver(ctx context.Context, action models.PendingAction) error {
	body, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver action: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("deliver action: http %d", resp.StatusCode)
	}
	return nil
}
