package util

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4" // registers the socks4 proxy scheme
	"golang.org/x/net/proxy"
)

// NewHTTPClient builds an http.Client with the given timeout, routed
// through proxyStr when one is set. Supported schemes: http, https,
// socks5 (with optional auth) and socks4.
func NewHTTPClient(timeout time.Duration, proxyStr string) (*http.Client, error) {
	if proxyStr == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "socks4":
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{
			Timeout: 10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("socks4 dialer: %w", err)
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
