package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const headerServiceToken = "x-service-token"

// Client talks to one listingsearch sidecar over HTTP, either TCP or a
// Unix domain socket. It is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	obs     *observer
}

// New builds a Client. Without options it targets DefaultBaseURL with a
// 10s timeout, no token, no logging and no metrics.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	base := cfg.baseURL
	if base == "" {
		if cfg.socketPath != "" {
			// Host is a placeholder, the socket carries the connection.
			base = "http://localhost"
		} else {
			base = DefaultBaseURL
		}
	}

	httpc := cfg.httpClient
	if httpc == nil {
		transport := &http.Transport{}
		if cfg.socketPath != "" {
			sock := cfg.socketPath
			transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", sock)
			}
		}
		httpc = &http.Client{Timeout: cfg.timeout, Transport: transport}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, fmt.Errorf("listingsearch: register client metrics: %w", err)
	}

	return &Client{
		baseURL: base,
		token:   cfg.token,
		httpc:   httpc,
		obs:     obs,
	}, nil
}

// Index upserts one listing. Indexing the same id twice replaces the
// previous document.
func (c *Client) Index(ctx context.Context, l Listing) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	err = c.postJSON(ctx, "/index", nil, l, nil)
	return err
}

// Remove deletes one listing from the index. Removing an unknown id is
// not an error.
func (c *Client) Remove(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("remove", start, err) }()

	body := struct {
		ID string `json:"id"`
	}{ID: id}
	err = c.postJSON(ctx, "/remove", nil, body, nil)
	return err
}

// Search ranks listings against the query. The returned Results slice is
// never nil.
func (c *Client) Search(ctx context.Context, req SearchRequest, opts ...SearchOption) (resp SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var params searchParams
	for _, o := range opts {
		o(&params)
	}
	q := url.Values{}
	if params.debug {
		q.Set("debug", "1")
	}
	if params.bypassCutoff {
		q.Set("bypass_cutoff", "1")
	}

	if err = c.postJSON(ctx, "/search", q, req, &resp); err != nil {
		return SearchResponse{}, err
	}
	if resp.Results == nil {
		resp.Results = []Result{}
	}
	return resp, nil
}

// Rebuild atomically replaces the whole index with the given listings and
// returns how many documents the new index holds. An empty slice clears
// the index.
func (c *Client) Rebuild(ctx context.Context, listings []Listing) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rebuild", start, err) }()

	if listings == nil {
		listings = []Listing{}
	}
	body := struct {
		Listings []Listing `json:"listings"`
	}{Listings: listings}
	var out struct {
		OK    bool `json:"ok"`
		Count int  `json:"count"`
	}
	if err = c.postJSON(ctx, "/rebuild", nil, body, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Health reports the service health. A degraded sidecar still produces a
// HealthStatus with a nil error; only transport failures error out.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("listingsearch: build request: %w", err)
	}
	c.setHeaders(req)

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("listingsearch: health: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	// Degraded answers come back as 503 with the same body shape.
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusServiceUnavailable {
		err = apiErrorFrom(httpResp)
		return HealthStatus{}, err
	}
	if err = json.NewDecoder(httpResp.Body).Decode(&hs); err != nil {
		err = fmt.Errorf("listingsearch: decode health response: %w", err)
		return HealthStatus{}, err
	}
	return hs, nil
}

func (c *Client) postJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return fmt.Errorf("listingsearch: encode request: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, buf)
	if err != nil {
		return fmt.Errorf("listingsearch: build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("listingsearch: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return apiErrorFrom(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("listingsearch: decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(headerServiceToken, c.token)
	}
}

// apiErrorFrom drains the error body. The service always answers errors
// with {"error": "..."}, but a proxy in between might not.
func apiErrorFrom(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
