package proxy

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// NewHTTPClient returns the client used for cloud backend traffic. When
// socksAddr is set, connections are dialed through that SOCKS5 proxy.
// Requests answered with HTTP 429 are retried with exponential backoff.
func NewHTTPClient(socksAddr string, timeout time.Duration) (*http.Client, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()

	if socksAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("creating socks5 dialer for %s: %w", socksAddr, err)
		}
		base.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			base.DialContext = cd.DialContext
		} else {
			base.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{
		Transport: &RetryTransport{Base: base},
		Timeout:   timeout,
	}, nil
}

// RetryTransport retries requests rejected with HTTP 429.
type RetryTransport struct {
	Base http.RoundTripper
	// Backoff is the delay before the second attempt; it doubles afterwards.
	Backoff time.Duration
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	backoff := t.Backoff
	if backoff == 0 {
		backoff = initialBackoff
	}

	replayable := req.Body == nil || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			r = req.Clone(req.Context())
			r.Body = body
		}

		resp, err := base.RoundTrip(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRetries-1 || !replayable {
			return resp, nil
		}
		resp.Body.Close()

		wait := time.Duration(float64(backoff) * math.Pow(2, float64(attempt)))
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
}
