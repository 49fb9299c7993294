package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// ProxyModeEnv selects the proxy policy when Options.ProxyMode is empty.
const ProxyModeEnv = "DEEPSEEK_PROXY_MODE"

const proxyDialTimeout = 300 * time.Millisecond

// ProxyMode controls how environment proxies are honoured.
type ProxyMode uint8

const (
	ProxyAuto ProxyMode = iota
	ProxyStrict
	ProxyDirect
)

func parseProxyMode(raw string) ProxyMode {
	if strings.TrimSpace(raw) == "" {
		raw = os.Getenv(ProxyModeEnv)
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return ProxyStrict
	case "direct", "none", "off":
		return ProxyDirect
	default:
		return ProxyAuto
	}
}

// proxyResolver remembers which loopback proxies were unreachable so the
// probe runs once per proxy URL for the lifetime of a transport.
type proxyResolver struct {
	mode    ProxyMode
	logger  logging.Logger
	fromEnv func(*http.Request) (*url.URL, error)

	mu     sync.Mutex
	bypass map[string]bool
}

func newProxyResolver(mode ProxyMode, logger logging.Logger) *proxyResolver {
	return &proxyResolver{
		mode:    mode,
		logger:  logging.OrNop(logger),
		fromEnv: http.ProxyFromEnvironment,
		bypass:  map[string]bool{},
	}
}

func (p *proxyResolver) resolve(req *http.Request) (*url.URL, error) {
	switch p.mode {
	case ProxyDirect:
		return nil, nil
	case ProxyStrict:
		return p.fromEnv(req)
	}
	if req == nil || req.URL == nil {
		return p.fromEnv(req)
	}
	if isLoopbackHost(req.URL.Hostname()) {
		return nil, nil
	}

	proxyURL, err := p.fromEnv(req)
	if proxyURL == nil || err != nil || !isLoopbackHost(proxyURL.Hostname()) {
		return proxyURL, err
	}
	hostPort, ok := proxyHostPort(proxyURL)
	if !ok {
		return proxyURL, nil
	}

	key := proxyURL.String()
	p.mu.Lock()
	skip, seen := p.bypass[key]
	p.mu.Unlock()
	if !seen {
		skip = !isProxyReachable(req.Context(), hostPort)
		p.mu.Lock()
		p.bypass[key] = skip
		p.mu.Unlock()
		if skip {
			p.logger.Warn("Local proxy %s is unreachable; connecting directly (set %s=strict to disable)", proxyURL.Redacted(), ProxyModeEnv)
		}
	}
	if skip {
		return nil, nil
	}
	return proxyURL, nil
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

func proxyHostPort(proxyURL *url.URL) (string, bool) {
	host := strings.TrimSpace(proxyURL.Hostname())
	if host == "" {
		return "", false
	}
	port := proxyURL.Port()
	if port == "" {
		switch strings.ToLower(proxyURL.Scheme) {
		case "", "http":
			port = "80"
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			return "", false
		}
	}
	return net.JoinHostPort(host, port), true
}

func isProxyReachable(ctx context.Context, hostPort string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	dialer := net.Dialer{Timeout: proxyDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
