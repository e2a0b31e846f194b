// Package auth provides OAuth2 client-credentials access for outbound calls
// to services such as a remote reliability scorer.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// ClientCred caches a client-credentials token and refreshes it when it
// expires.
type ClientCred struct {
	source oauth2.TokenSource
}

func NewClientCred(conf Conf) *ClientCred {
	cc := conf.toOauth2Config()
	return &ClientCred{source: oauth2.ReuseTokenSource(nil, cc.TokenSource(context.Background()))}
}

// GetToken returns a valid access token, requesting a new one when the
// cached token has expired.
func (c *ClientCred) GetToken() (string, error) {
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return tok.AccessToken, nil
}

// SetAuthHeader adds the bearer token to r.
func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	tok, err := c.source.Token()
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}
	tok.SetAuthHeader(r)
	return nil
}

// NewHTTPClient returns a client with the given timeout. When conf is
// enabled every request carries a bearer token obtained from conf.AuthURL.
func NewHTTPClient(ctx context.Context, conf Conf, timeout time.Duration) *http.Client {
	if !conf.Enabled() {
		return &http.Client{Timeout: timeout}
	}
	cc := conf.toOauth2Config()
	client := cc.Client(ctx)
	client.Timeout = timeout
	return client
}
