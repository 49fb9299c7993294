package httpclient

import (
	"bytes"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// http.ProxyFromEnvironment reads the environment once per process, so tests
// inject the proxy directly.
func resolverWithProxy(t *testing.T, mode ProxyMode, proxy string) *proxyResolver {
	t.Helper()
	proxyURL, err := url.Parse(proxy)
	require.NoError(t, err)
	r := newProxyResolver(mode, nil)
	r.fromEnv = func(*http.Request) (*url.URL, error) { return proxyURL, nil }
	return r
}

func TestReadAllWithLimit(t *testing.T) {
	payload := []byte("hello")

	got, err := ReadAllWithLimit(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = ReadAllWithLimit(bytes.NewReader(payload), 2)
	require.Error(t, err)
	assert.True(t, IsResponseTooLarge(err))

	got, err = ReadAllWithLimit(bytes.NewReader(payload), 0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestValidateBaseURL(t *testing.T) {
	got, err := ValidateBaseURL(" https://api.deepseek.com/ ")
	require.NoError(t, err)
	assert.Equal(t, "https://api.deepseek.com", got)

	for _, raw := range []string{"", "ftp://example.com", "api.deepseek.com", "https://"} {
		_, err := ValidateBaseURL(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestNewKeepsTimeoutCeiling(t *testing.T) {
	client := New(Options{Timeout: 5 * time.Second, ProxyMode: "direct"}, nil)
	assert.Equal(t, 5*time.Second, client.Timeout)
	require.IsType(t, &http.Transport{}, client.Transport)
}

func TestProxyAutoBypassesUnreachableLoopbackProxy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	req, err := http.NewRequest(http.MethodPost, "https://api.deepseek.com/chat/completions", nil)
	require.NoError(t, err)

	proxy, err := resolverWithProxy(t, ProxyAuto, "http://"+addr).resolve(req)
	require.NoError(t, err)
	assert.Nil(t, proxy)
}

func TestProxyAutoUsesReachableLoopbackProxy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	req, err := http.NewRequest(http.MethodPost, "https://api.deepseek.com/chat/completions", nil)
	require.NoError(t, err)

	proxy, err := resolverWithProxy(t, ProxyAuto, "http://"+listener.Addr().String()).resolve(req)
	require.NoError(t, err)
	require.NotNil(t, proxy)
	assert.Equal(t, listener.Addr().String(), proxy.Host)
}

func TestProxyStrictAndDirect(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "https://api.deepseek.com/chat/completions", nil)
	require.NoError(t, err)

	proxy, err := resolverWithProxy(t, ProxyStrict, "http://127.0.0.1:1").resolve(req)
	require.NoError(t, err)
	assert.NotNil(t, proxy)

	proxy, err = resolverWithProxy(t, ProxyDirect, "http://127.0.0.1:1").resolve(req)
	require.NoError(t, err)
	assert.Nil(t, proxy)
}

func TestParseProxyMode(t *testing.T) {
	t.Setenv(ProxyModeEnv, "strict")
	assert.Equal(t, ProxyStrict, parseProxyMode(""))
	assert.Equal(t, ProxyDirect, parseProxyMode("off"))
	assert.Equal(t, ProxyAuto, parseProxyMode("whatever"))
}
