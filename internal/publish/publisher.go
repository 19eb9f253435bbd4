// Package publish implements content-addressed publishing of converted
// sticker assets. Every payload is identified by a SHA-256 digest; a digest
// that has already been uploaded (this run or a prior one) is returned from
// the dedup cache without a second upload.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mxpack/mxpack/internal/metrics"
)

// Store failure taxonomy. Store implementations wrap their transport errors
// into one of these so the publisher can decide whether to retry.
var (
	// ErrTransient marks network faults and 5xx responses; eligible for retry.
	ErrTransient = errors.New("publish: transient store failure")

	// ErrRateLimited marks 429 responses; eligible for retry.
	ErrRateLimited = errors.New("publish: rate limited")

	// ErrUnauthorized marks 401/403 responses; never retried.
	ErrUnauthorized = errors.New("publish: unauthorized")

	// ErrRejected marks other permanent store rejections; never retried.
	ErrRejected = errors.New("publish: upload rejected")
)

// ContentRef identifies a published asset. For identical bytes the digest,
// and therefore the whole reference, is always identical.
type ContentRef struct {
	Digest   string `json:"digest"`
	URI      string `json:"uri"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimetype"`
}

// Store is the remote content store boundary.
type Store interface {
	// Exists reports whether the store already holds content under the
	// digest. Stores without a digest lookup always report a miss; the
	// dedup cache carries cross-run idempotence for them.
	Exists(ctx context.Context, digest string) (ContentRef, bool, error)

	// Upload stores the bytes and returns the resulting reference.
	Upload(ctx context.Context, data []byte, mimeType string) (ContentRef, error)
}

// Publisher uploads converted payloads with digest-based deduplication and
// bounded retries.
type Publisher struct {
	store  Store
	cache  Cache
	policy RetryPolicy
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(pub *Publisher) { pub.policy = p }
}

// WithLogger sets the publisher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pub *Publisher) { pub.logger = logger }
}

// NewPublisher creates a Publisher over the given store and dedup cache.
func NewPublisher(store Store, cache Cache, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		cache:  cache,
		policy: DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Digest computes the content digest used throughout mxpack, in the
// "sha256:<hex>" form sticker IDs are built from.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Publish returns a content reference for the payload, uploading only when
// neither the dedup cache nor the store knows the digest yet.
func (p *Publisher) Publish(ctx context.Context, data []byte, mimeType string) (ContentRef, error) {
	digest := Digest(data)
	logger := p.logger.With("digest", digest, "size", len(data))

	if ref, ok, err := p.cache.Get(ctx, digest); err != nil {
		logger.Warn("dedup cache lookup failed; proceeding without it", "error", err)
	} else if ok {
		logger.Debug("dedup cache hit; skipping upload")
		metrics.UploadsDeduplicated.Inc()
		return ref, nil
	}

	if ref, ok, err := p.store.Exists(ctx, digest); err != nil {
		logger.Warn("store existence check failed; proceeding to upload", "error", err)
	} else if ok {
		logger.Debug("store already holds digest; skipping upload")
		metrics.UploadsDeduplicated.Inc()
		p.record(ctx, digest, ref, logger)
		return ref, nil
	}

	ref, err := p.upload(ctx, data, mimeType, logger)
	if err != nil {
		return ContentRef{}, err
	}
	ref.Digest = digest
	ref.Size = int64(len(data))
	ref.MIMEType = mimeType

	p.record(ctx, digest, ref, logger)
	logger.Debug("uploaded", "uri", ref.URI)
	return ref, nil
}

// upload runs the store upload under the retry policy.
func (p *Publisher) upload(ctx context.Context, data []byte, mimeType string, logger *slog.Logger) (ContentRef, error) {
	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		start := time.Now()
		ref, err := p.store.Upload(ctx, data, mimeType)
		metrics.PublishDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if !Retryable(err) {
			return ContentRef{}, fmt.Errorf("upload rejected; %w", err)
		}
		if attempt == p.policy.MaxAttempts {
			break
		}

		delay := p.policy.Backoff(attempt)
		logger.Warn("upload failed; retrying",
			"error", err,
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"delay", delay)
		metrics.UploadRetries.Inc()

		select {
		case <-ctx.Done():
			return ContentRef{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return ContentRef{}, fmt.Errorf("upload failed after %d attempts; %w", p.policy.MaxAttempts, lastErr)
}

func (p *Publisher) record(ctx context.Context, digest string, ref ContentRef, logger *slog.Logger) {
	if err := p.cache.Put(ctx, digest, ref); err != nil {
		logger.Warn("dedup cache write failed", "error", err)
	}
}

// Retryable reports whether a store failure is transient and worth retrying.
func Retryable(err error) bool {
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
