// Package httpclient provides the outbound HTTP client used for
// confirmation-link fetches and feed downloads.
package httpclient

import (
	"context"
	"net/http"
	"time"
)

// ClientType selects the header profile for outbound requests.
type ClientType string

const (
	// BrowserClient sends browser-like headers. Some newsletter hosts
	// answer 406 to anything that does not look like a browser.
	BrowserClient ClientType = "browser"

	// PlainClient sends minimal curl-style headers. Cloudflare-fronted
	// hosts tend to block fake browser User-Agents but allow simple tools.
	PlainClient ClientType = "plain"
)

const defaultTimeout = 30 * time.Second

// HTTPClient wraps an http.Client with a header profile.
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
}

// NewClient creates a client with the given header profile.
func NewClient(clientType ClientType) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		clientType: clientType,
	}
}

// Do executes the request with the profile's headers applied.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// Get issues a GET request for the URL.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	case PlainClient:
		req.Header.Set("User-Agent", "curl/8.7.1")
	}
}
