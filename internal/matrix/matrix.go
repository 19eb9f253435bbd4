// Package matrix implements the remote content store boundary against a
// Matrix homeserver's media repository. Uploads return mxc:// URIs; HTTP
// failures are folded into the publisher's error taxonomy so retry decisions
// stay in one place.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mxpack/mxpack/internal/publish"
)

// Client talks to a Matrix homeserver's media API.
type Client struct {
	homeserverURL string
	accessToken   string
	http          *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout sets the per-upload HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a media client for the given homeserver.
func NewClient(homeserverURL, accessToken string, opts ...ClientOption) *Client {
	c := &Client{
		homeserverURL: strings.TrimRight(homeserverURL, "/"),
		accessToken:   accessToken,
		http:          &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HomeserverURL returns the configured homeserver base URL.
func (c *Client) HomeserverURL() string { return c.homeserverURL }

// Exists implements publish.Store. Plain homeservers have no digest lookup
// endpoint, so this is always a miss; cross-run dedup is carried by the
// publisher's digest cache.
func (c *Client) Exists(_ context.Context, _ string) (publish.ContentRef, bool, error) {
	return publish.ContentRef{}, false, nil
}

// uploadResponse is the media repo upload result.
type uploadResponse struct {
	ContentURI string `json:"content_uri"`
}

// errorResponse is the standard Matrix error body.
type errorResponse struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

// Upload implements publish.Store by POSTing to the v3 media upload
// endpoint.
func (c *Client) Upload(ctx context.Context, data []byte, mimeType string) (publish.ContentRef, error) {
	u := c.homeserverURL + "/_matrix/media/v3/upload"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return publish.ContentRef{}, fmt.Errorf("failed to build upload request; %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return publish.ContentRef{}, fmt.Errorf("%w; %v", publish.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return publish.ContentRef{}, c.uploadError(resp)
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return publish.ContentRef{}, fmt.Errorf("%w; malformed upload response: %v", publish.ErrTransient, err)
	}
	if !strings.HasPrefix(result.ContentURI, "mxc://") {
		return publish.ContentRef{}, fmt.Errorf("%w; unexpected content URI %q", publish.ErrRejected, result.ContentURI)
	}

	return publish.ContentRef{
		URI:      result.ContentURI,
		Size:     int64(len(data)),
		MIMEType: mimeType,
	}, nil
}

// uploadError maps an HTTP failure to the publisher's taxonomy.
func (c *Client) uploadError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var matrixErr errorResponse
	_ = json.Unmarshal(body, &matrixErr)

	detail := matrixErr.Message
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w; status %d: %s", publish.ErrUnauthorized, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w; status %d: %s", publish.ErrRateLimited, resp.StatusCode, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w; status %d: %s", publish.ErrTransient, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w; status %d (%s): %s", publish.ErrRejected, resp.StatusCode, matrixErr.Code, detail)
	}
}
