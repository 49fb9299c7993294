// Package httpclient builds the pooled *http.Client shared by both agents.
package httpclient

import (
	"net/http"
	"time"

	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// DefaultResponseLimit caps how much of an API response body is buffered.
const DefaultResponseLimit int64 = 8 << 20

// Options tunes the outbound client.
type Options struct {
	// Timeout is a hard ceiling for one exchange. Zero leaves the bound to
	// the request context.
	Timeout time.Duration
	// ProxyMode is auto, strict or direct. Empty reads DEEPSEEK_PROXY_MODE.
	ProxyMode string
}

// New returns an http.Client configured for outbound API calls.
//
// It respects HTTP(S)_PROXY/ALL_PROXY/NO_PROXY, but in auto mode skips a
// loopback proxy that does not accept connections.
func New(opts Options, logger logging.Logger) *http.Client {
	timeout := opts.Timeout
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: Transport(parseProxyMode(opts.ProxyMode), logger),
	}
}

// Transport returns a clone of the default transport with the proxy policy applied.
func Transport(mode ProxyMode, logger logging.Logger) *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{Proxy: newProxyResolver(mode, logger).resolve}
	}
	transport := base.Clone()
	transport.Proxy = newProxyResolver(mode, logger).resolve
	transport.MaxIdleConnsPerHost = 4
	transport.IdleConnTimeout = 90 * time.Second
	return transport
}
