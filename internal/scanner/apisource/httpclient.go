package apisource

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hostscout/api/internal/scanner"
)

// newHTTPClient builds an HTTP client honoring the source's TLS and
// proxy options.
func newHTTPClient(tc scanner.TaskContext, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !tc.Source.SSLCertVerify},
	}
	if tc.Source.ProxyURL != "" {
		proxy, err := url.Parse(tc.Source.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// baseURL composes the scheme, host and port of an API source.
func baseURL(tc scanner.TaskContext) string {
	scheme := "https"
	if tc.Source.DisableSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, tc.Source.Hosts[0], tc.Source.Port)
}

// getJSON fetches a URL and decodes the body into out. A 401 or 403
// maps to ErrAuthFailed.
func getJSON(ctx context.Context, client *http.Client, u string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid json from %s: %w", u, err)
	}
	return nil
}
