package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/rescale/webup/internal/config"
	"github.com/rescale/webup/internal/constants"
)

// Clients holds the two HTTP clients used against the uploader.
//
// Control carries list/move/delete/create: response headers must arrive within
// HTTPResponseHeaderTimeout. Transfer carries upload/download bodies and has no
// deadline of its own; the task context bounds it.
type Clients struct {
	Control  *nethttp.Client
	Transfer *nethttp.Client
}

// NewClients builds the control and transfer clients with proxy support.
//
// Set DISABLE_HTTP2=true to force HTTP/1.1. HTTP/2 is also disabled when a
// proxy is active (unless FORCE_HTTP2=true) since proxies often break h2 streams
// mid-transfer.
func NewClients(cfg *config.Config) (*Clients, error) {
	control, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	transfer, err := ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, err
	}

	if tr, ok := control.Transport.(*nethttp.Transport); ok {
		tr.ResponseHeaderTimeout = constants.HTTPResponseHeaderTimeout
		configureHTTP2(tr, cfg)
	}

	// NTLM wraps the transport in a negotiator; leave it as is
	if tr, ok := transfer.Transport.(*nethttp.Transport); ok {
		tr.DisableCompression = true
		configureHTTP2(tr, cfg)
	}

	return &Clients{Control: control, Transfer: transfer}, nil
}

func configureHTTP2(tr *nethttp.Transport, cfg *config.Config) {
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}
}

// proxyActive trusts the configured mode first and only consults the
// environment for "system" mode.
func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return cfg.ProxyHost != ""
	}
}
