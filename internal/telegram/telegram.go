// Package telegram is the source connector: it fetches sticker set metadata
// and raw sticker bytes from the Telegram Bot API. All calls carry explicit
// timeouts and share a rate limiter so a large pack import stays inside the
// platform's request budget.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrNotFound means the sticker set or file does not exist.
	ErrNotFound = errors.New("telegram: not found")

	// ErrUnavailable means the API could not be reached or answered with
	// a server error. Listing failures with this error abort the pack.
	ErrUnavailable = errors.New("telegram: source unavailable")
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// maxAssetSize bounds a single sticker download.
const maxAssetSize = 32 << 20

// Sticker is one entry of a sticker set, in declared order.
type Sticker struct {
	FileID     string `json:"file_id"`
	FileUniqID string `json:"file_unique_id"`
	Emoji      string `json:"emoji"`
	IsAnimated bool   `json:"is_animated"`
	IsVideo    bool   `json:"is_video"`
}

// StickerSet is the pack metadata plus its ordered sticker list.
type StickerSet struct {
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Stickers []Sticker `json:"stickers"`
}

// Client is a Bot API client.
type Client struct {
	apiURL  string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithAPIURL overrides the Bot API base URL (tests, self-hosted gateways).
func WithAPIURL(u string) ClientOption {
	return func(c *Client) { c.apiURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiURL:  DefaultAPIURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// GetStickerSet fetches a sticker set by its short name. Order of the
// returned stickers is the set's declared order.
func (c *Client) GetStickerSet(ctx context.Context, name string) (*StickerSet, error) {
	var set StickerSet
	params := url.Values{"name": {name}}
	if err := c.call(ctx, "getStickerSet", params, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// Download fetches a sticker's raw bytes by file ID and returns them with a
// MIME hint derived from the stored file path.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	var file struct {
		FilePath string `json:"file_path"`
	}
	params := url.Values{"file_id": {fileID}}
	if err := c.call(ctx, "getFile", params, &file); err != nil {
		return nil, "", err
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("%w; file %s has no path", ErrNotFound, fileID)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, c.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request; %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w; download: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("%w; file %s", ErrNotFound, fileID)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("%w; download status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, "", fmt.Errorf("%w; download read: %v", ErrUnavailable, err)
	}
	return data, mimeHint(file.FilePath), nil
}

// call performs a Bot API method call and decodes the result envelope.
func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/bot%s/%s?%s", c.apiURL, c.token, method, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request; %w", method, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w; %s: %v", ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w; %s status %d", ErrUnavailable, method, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w; %s: invalid response: %v", ErrUnavailable, method, err)
	}
	if !envelope.OK {
		desc := strings.ToLower(envelope.Description)
		// The Bot API reports unknown sets as 400 STICKERSET_INVALID
		// rather than 404.
		if envelope.ErrorCode == http.StatusNotFound || strings.Contains(desc, "not found") || strings.Contains(desc, "invalid") {
			return fmt.Errorf("%w; %s: %s", ErrNotFound, method, envelope.Description)
		}
		return fmt.Errorf("%w; %s: %s (code %d)", ErrUnavailable, method, envelope.Description, envelope.ErrorCode)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("%w; %s: malformed result: %v", ErrUnavailable, method, err)
	}
	return nil
}

// mimeHint guesses a MIME type from the Bot API file path extension.
func mimeHint(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".tgs":
		return "application/x-tgsticker"
	case ".webp":
		return "image/webp"
	case ".webm":
		return "video/webm"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
