package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// TLSConfig lets a deployment reach a search or LLM vendor that sits
// behind a corporate TLS-intercepting proxy or a self-signed internal
// gateway, without patching every adapter constructor.
type TLSConfig struct {
	// CACertificate is a path to a PEM-encoded CA bundle to trust in
	// addition to the system roots.
	CACertificate string

	// InsecureSkipVerify disables certificate verification entirely.
	// Development/debugging only — never set in a production deployment.
	InsecureSkipVerify bool
}

// ConfigureTLS builds an http.Transport reflecting cfg. A nil cfg
// produces a plain transport with the system cert pool.
func ConfigureTLS(cfg *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	if cfg == nil {
		return transport, nil
	}

	if cfg.CACertificate != "" {
		pem, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate %s: %w", cfg.CACertificate, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", cfg.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}

	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
		slog.Warn("TLS certificate verification disabled for outbound httpclient requests")
	}

	return transport, nil
}

// WithTLSConfig applies cfg to the Client's transport, preserving
// whatever timeout is already set. Safe to combine with WithHTTPClient in
// either order — WithHTTPClient also carries a staged TLS config forward.
func WithTLSConfig(cfg *TLSConfig) Option {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		transport, err := ConfigureTLS(cfg)
		if err != nil {
			slog.Warn("failed to configure TLS transport, keeping default", "error", err)
			return
		}
		if c.inner != nil {
			timeout := c.inner.Timeout
			c.inner.Transport = transport
			c.inner.Timeout = timeout
		} else {
			c.inner = &http.Client{Transport: transport, Timeout: 120 * time.Second}
		}
	}
}
