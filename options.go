package citegate

import "net/http"

// Option configures the client.
type Option func(*clientConfig)

type clientConfig struct {
	apiKey     string
	httpClient *http.Client
}

// WithAPIKey sets the Bearer token sent with each request.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}
