package publish

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockStore counts uploads and fails according to its script.
type mockStore struct {
	mu       sync.Mutex
	uploads  int
	exists   map[string]ContentRef
	failWith error // returned on every upload when set
	failN    int   // fail the first N uploads with failWith, then succeed
}

func (s *mockStore) Exists(_ context.Context, digest string) (ContentRef, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.exists[digest]
	return ref, ok, nil
}

func (s *mockStore) Upload(_ context.Context, data []byte, mimeType string) (ContentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failWith != nil && (s.failN == 0 || s.uploads <= s.failN) {
		return ContentRef{}, s.failWith
	}
	return ContentRef{
		URI:      fmt.Sprintf("mxc://example.org/upload%d", s.uploads),
		Size:     int64(len(data)),
		MIMEType: mimeType,
	}, nil
}

func (s *mockStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// fastPolicy keeps retry tests quick.
func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func TestDigest(t *testing.T) {
	got := Digest([]byte("hello"))
	want := "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("Digest() = %q, want %q", got, want)
	}
	if Digest([]byte("hello")) != got {
		t.Error("Digest() is not stable across calls")
	}
}

func TestPublishIdempotent(t *testing.T) {
	store := &mockStore{}
	pub := NewPublisher(store, NewMemoryCache())
	data := []byte("sticker payload")

	first, err := pub.Publish(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("first Publish failed: %v", err)
	}
	second, err := pub.Publish(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("second Publish failed: %v", err)
	}

	if store.uploadCount() != 1 {
		t.Errorf("upload count = %d, want 1", store.uploadCount())
	}
	if first != second {
		t.Errorf("references differ: %+v vs %+v", first, second)
	}
	if first.Digest != Digest(data) {
		t.Errorf("Digest = %q, want %q", first.Digest, Digest(data))
	}
	if first.Size != int64(len(data)) || first.MIMEType != "image/png" {
		t.Errorf("unexpected reference metadata: %+v", first)
	}
}

func TestPublishStoreExistsSkipsUpload(t *testing.T) {
	data := []byte("already there")
	digest := Digest(data)
	existing := ContentRef{Digest: digest, URI: "mxc://example.org/prior"}

	store := &mockStore{exists: map[string]ContentRef{digest: existing}}
	cache := NewMemoryCache()
	pub := NewPublisher(store, cache)

	ref, err := pub.Publish(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if store.uploadCount() != 0 {
		t.Errorf("upload count = %d, want 0", store.uploadCount())
	}
	if ref.URI != existing.URI {
		t.Errorf("URI = %q, want %q", ref.URI, existing.URI)
	}
	// The hit is recorded so later runs skip the store round trip too.
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", cache.Len())
	}
}

func TestPublishRetriesTransient(t *testing.T) {
	store := &mockStore{failWith: ErrTransient, failN: 2}
	pub := NewPublisher(store, NewMemoryCache(), WithRetryPolicy(fastPolicy(4)))

	ref, err := pub.Publish(context.Background(), []byte("flaky"), "image/gif")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if store.uploadCount() != 3 {
		t.Errorf("upload count = %d, want 3 (two failures then success)", store.uploadCount())
	}
	if !strings.HasPrefix(ref.URI, "mxc://") {
		t.Errorf("unexpected URI %q", ref.URI)
	}
}

func TestPublishExhaustsRetryBudget(t *testing.T) {
	store := &mockStore{failWith: ErrTransient}
	pub := NewPublisher(store, NewMemoryCache(), WithRetryPolicy(fastPolicy(3)))

	_, err := pub.Publish(context.Background(), []byte("doomed"), "image/gif")
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("Publish() error = %v, want ErrTransient", err)
	}
	if store.uploadCount() != 3 {
		t.Errorf("upload count = %d, want exactly MaxAttempts (3)", store.uploadCount())
	}
}

func TestPublishDoesNotRetryPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", ErrUnauthorized},
		{"rejected", ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{failWith: tt.err}
			pub := NewPublisher(store, NewMemoryCache(), WithRetryPolicy(fastPolicy(4)))

			_, err := pub.Publish(context.Background(), []byte("denied"), "image/png")
			if !errors.Is(err, tt.err) {
				t.Fatalf("Publish() error = %v, want %v", err, tt.err)
			}
			if store.uploadCount() != 1 {
				t.Errorf("upload count = %d, want 1 (no retries)", store.uploadCount())
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", ErrTransient, true},
		{"wrapped transient", fmt.Errorf("upload; %w", ErrTransient), true},
		{"rate limited", ErrRateLimited, true},
		{"deadline", context.DeadlineExceeded, true},
		{"unauthorized", ErrUnauthorized, false},
		{"rejected", ErrRejected, false},
		{"plain", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond}, // capped
		{5, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestFileCachePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.json")
	ref := ContentRef{Digest: "sha256:abc", URI: "mxc://example.org/abc", Size: 3, MIMEType: "image/png"}

	cache, err := OpenFileCache(path)
	if err != nil {
		t.Fatalf("OpenFileCache failed: %v", err)
	}
	if err := cache.Put(context.Background(), ref.Digest, ref); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	reopened, err := OpenFileCache(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok, err := reopened.Get(context.Background(), ref.Digest)
	if err != nil || !ok {
		t.Fatalf("Get after reopen = (%v, %v), want hit", ok, err)
	}
	if got != ref {
		t.Errorf("reloaded reference = %+v, want %+v", got, ref)
	}
}

func TestFileCacheMissingFile(t *testing.T) {
	cache, err := OpenFileCache(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("OpenFileCache failed: %v", err)
	}
	if _, ok, _ := cache.Get(context.Background(), "sha256:none"); ok {
		t.Error("empty cache reported a hit")
	}
}

func TestMemoryCacheSeed(t *testing.T) {
	cache := NewMemoryCache()
	cache.Seed(map[string]ContentRef{
		"sha256:one": {URI: "mxc://example.org/one"},
		"sha256:two": {URI: "mxc://example.org/two"},
	})

	if cache.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cache.Len())
	}
	ref, ok, _ := cache.Get(context.Background(), "sha256:one")
	if !ok || ref.URI != "mxc://example.org/one" {
		t.Errorf("Get() = (%+v, %v), want seeded entry", ref, ok)
	}
}
