// Package satellite implements the Satellite 6 inspector: an
// authenticated paginated API client, the v1 (Katello, org fan-out)
// and v2 (flat hosts) protocols, and the connect and inspect runners.
package satellite

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hostscout/api/pkg/logger"
)

// maxPerPage caps page size on every list endpoint.
const maxPerPage = 100

// APIError is a non-2xx response from the Satellite API.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("satellite api status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ClientConfig carries everything needed to talk to one Satellite.
type ClientConfig struct {
	BaseURL           string
	Username          string
	Password          string
	Timeout           time.Duration
	SSLCertVerify     bool
	DisableSSL        bool
	ProxyURL          string
	RequestsPerSecond float64
}

// Client is a rate-limited JSON client for the Satellite API.
type Client struct {
	http    *http.Client
	baseURL string
	user    string
	pass    string
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewClient builds a client. Timeout defaults to 30 seconds; a zero
// RequestsPerSecond disables pacing.
func NewClient(cfg ClientConfig, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("satellite base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.SSLCertVerify},
	}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		http:    &http.Client{Timeout: timeout, Transport: transport},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		user:    cfg.Username,
		pass:    cfg.Password,
		limiter: limiter,
		logger:  log.With("component", "satellite_client"),
	}, nil
}

// GetJSON fetches a path and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.pass)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("satellite request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read satellite response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid satellite json: %w", err)
	}
	return nil
}

// page is the envelope every Satellite list endpoint returns.
type page struct {
	Results []json.RawMessage `json:"results"`
	PerPage flexInt           `json:"per_page"`
	Total   int               `json:"total"`
}

// flexInt tolerates Satellite returning per_page as either a number or
// a quoted string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// ListAll walks a paginated list endpoint until page * per_page covers
// the reported total.
func (c *Client) ListAll(ctx context.Context, path string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	for pageNum := 1; ; pageNum++ {
		query := url.Values{
			"page":     {strconv.Itoa(pageNum)},
			"per_page": {strconv.Itoa(maxPerPage)},
		}
		var p page
		if err := c.GetJSON(ctx, path, query, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)

		perPage := int(p.PerPage)
		if perPage <= 0 {
			perPage = maxPerPage
		}
		if pageNum*perPage >= p.Total || len(p.Results) == 0 {
			return all, nil
		}
	}
}

// status is the /api/status response.
type status struct {
	Version    string `json:"version"`
	APIVersion int    `json:"api_version"`
}

// ProbeVersion hits /api/status and reports whether the Satellite
// speaks the pre-6.2 Katello protocol.
func (c *Client) ProbeVersion(ctx context.Context) (version string, katello bool, err error) {
	var st status
	if err := c.GetJSON(ctx, "/api/status", nil, &st); err != nil {
		return "", false, err
	}
	return st.Version, versionBelow62(st.Version), nil
}

func versionBelow62(version string) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minor, err := strconv.Atoi(strings.TrimFunc(parts[1], func(r rune) bool {
		return r < '0' || r > '9'
	}))
	if err != nil {
		return false
	}
	return major < 6 || (major == 6 && minor < 2)
}
