// Package proxy relays unmatched or body-less responses to a real upstream.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
)

var _ ports.Forwarder = (*Forwarder)(nil)

// hopByHopHeaders must not be relayed in either direction. Host and
// Content-Length are recomputed by the transport.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
	"Content-Length":      true,
}

// Forwarder relays requests to a fixed upstream base URL over HTTP.
type Forwarder struct {
	target  *url.URL
	client  *http.Client
	timeout time.Duration
	logger  ports.Logger
}

// New creates a forwarder for the given upstream base URL. Redirects are
// relayed to the caller rather than followed.
func New(target string, timeout time.Duration, logger ports.Logger) (*Forwarder, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url %q must be http or https", target)
	}

	return &Forwarder{
		target: u,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Forward relays the request and returns the upstream response with
// hop-by-hop headers stripped. A deadline hit maps to ErrUpstreamTimeout.
func (f *Forwarder) Forward(ctx context.Context, req *ports.ForwardRequest) (*ports.ForwardResponse, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	u := *f.target
	u.Path = singleJoin(f.target.Path, req.Path)
	u.RawQuery = req.RawQuery

	var body io.Reader
	if len(req.Body) > 0 && req.Method != http.MethodGet && req.Method != http.MethodHead {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	for name, values := range req.Headers {
		if hopByHopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ports.ErrUpstreamTimeout, req.Method, req.Path)
		}
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	headers := make(map[string][]string, len(resp.Header))
	for name, values := range resp.Header {
		if hopByHopHeaders[name] {
			continue
		}
		headers[name] = values
	}

	f.logger.Debug("upstream responded",
		"method", req.Method, "path", req.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	return &ports.ForwardResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    data,
	}, nil
}

func singleJoin(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}
