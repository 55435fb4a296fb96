package whatsapp

import (
	"fmt"
	"net/url"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
)

// ProxyKind is the closed set of supported proxy transports. Unknown kinds
// are rejected when the descriptor is built, not when it is used.
type ProxyKind string

const (
	ProxySocks4    ProxyKind = "socks4"
	ProxySocks5    ProxyKind = "socks5"
	ProxySocks5TLS ProxyKind = "socks5-tls"
	ProxyHTTP      ProxyKind = "http"
	ProxyHTTPS     ProxyKind = "https"
)

// ValidProxyKind reports whether t names a supported proxy kind.
func ValidProxyKind(t string) bool {
	switch ProxyKind(t) {
	case ProxySocks4, ProxySocks5, ProxySocks5TLS, ProxyHTTP, ProxyHTTPS:
		return true
	}
	return false
}

// ProxyTransport is the resolved transport descriptor for one connection
// attempt. It is immutable; a reconnect rebuilds it from the stored config.
type ProxyTransport struct {
	Kind ProxyKind
	URL  *url.URL
	// InsecureTLS is set only for the socks5-tls kind: the TLS handshake to
	// the proxy server itself skips certificate verification. Documented
	// operator trade-off inherited from the original deployment.
	InsecureTLS bool
}

// Socks reports whether the descriptor is a SOCKS variant.
func (t *ProxyTransport) Socks() bool {
	switch t.Kind {
	case ProxySocks4, ProxySocks5, ProxySocks5TLS:
		return true
	}
	return false
}

// Address returns the host:port authority of the proxy server.
func (t *ProxyTransport) Address() string {
	return t.URL.Host
}

// BuildProxyTransport turns a stored proxy configuration into a transport
// descriptor. Returns (nil, nil) when the proxy is absent or disabled, and
// (nil, *ProxyConfigError) when the config is present but unusable.
func BuildProxyTransport(cfg *domain.ProxyConfig) (*ProxyTransport, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if !ValidProxyKind(cfg.Type) {
		return nil, &ProxyConfigError{Reason: fmt.Sprintf("unsupported proxy type %q", cfg.Type)}
	}
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, &ProxyConfigError{Reason: "proxy host and port are required"}
	}

	kind := ProxyKind(cfg.Type)
	scheme := string(kind)
	if kind == ProxySocks5TLS {
		scheme = string(ProxySocks5)
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	// url.UserPassword percent-encodes the credentials in the authority.
	if cfg.Username != "" && cfg.Password != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	return &ProxyTransport{
		Kind:        kind,
		URL:         u,
		InsecureTLS: kind == ProxySocks5TLS,
	}, nil
}
