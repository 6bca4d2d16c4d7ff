package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"

	"github.com/odoobiznes/kms-fsnav/internal/config"
)

// CreateTransferClient creates an HTTP client for long-running batch uploads
// and downloads. It starts from ConfigureHTTPClient (same proxy behavior) and
// removes the overall timeout; each transfer is bounded by its context.
//
// HTTP/2 is enabled for direct connections and disabled when a proxy is in
// use, since intermediaries commonly break long multiplexed streams. Set
// DISABLE_HTTP2=true to force HTTP/1.1.
func CreateTransferClient(cfg *config.Config) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	baseClient.Timeout = 0

	// NTLM wraps the transport; leave it untouched.
	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		return baseClient, nil
	}

	tr.MaxIdleConnsPerHost = 32
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || proxyActive(cfg) {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return baseClient, nil
}

// proxyActive reports whether requests from cfg will go through a proxy.
func proxyActive(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return false
	case "system":
		for _, v := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"} {
			if os.Getenv(v) != "" {
				return true
			}
		}
		return false
	default:
		return cfg.ProxyHost != ""
	}
}
