package client

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultBaseURL is where a locally deployed sidecar listens over TCP.
	DefaultBaseURL = "http://127.0.0.1:8100"

	defaultTimeout = 10 * time.Second
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL    string
	socketPath string
	token      string
	timeout    time.Duration
	httpClient *http.Client

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithBaseURL points the client at a TCP deployment of the sidecar.
// Default: DefaultBaseURL.
func WithBaseURL(u string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = strings.TrimRight(u, "/")
	})
}

// WithUnixSocket routes every request through the given Unix domain socket.
// The request URL keeps a synthetic http://localhost host, the server never
// looks at it.
func WithUnixSocket(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.socketPath = path
	})
}

// WithToken sets the x-service-token header sent with every request.
func WithToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.token = token
	})
}

// WithTimeout bounds each request end to end, including the body read.
// Default: 10s. Ignored when WithHTTPClient is used.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithHTTPClient replaces the underlying HTTP client entirely. Socket and
// timeout options are then the caller's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithLogger enables structured logging of client operations through slog.
// Without it the client stays silent.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers operation counters and latency histograms on the
// given registerer. Without it no metrics are collected.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
