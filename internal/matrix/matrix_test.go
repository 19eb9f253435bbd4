package matrix

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mxpack/mxpack/internal/publish"
)

func TestUpload(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/_matrix/media/v3/upload" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody = r.ContentLength
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content_uri":"mxc://example.org/AQwafuaFswefuhsfAFAgsw"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "syt_secret")
	data := []byte("converted sticker bytes")

	ref, err := client.Upload(context.Background(), data, "image/png")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if ref.URI != "mxc://example.org/AQwafuaFswefuhsfAFAgsw" {
		t.Errorf("URI = %q", ref.URI)
	}
	if ref.Size != int64(len(data)) || ref.MIMEType != "image/png" {
		t.Errorf("unexpected reference metadata: %+v", ref)
	}
	if gotAuth != "Bearer syt_secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotContentType != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", gotContentType)
	}
	if gotBody != int64(len(data)) {
		t.Errorf("request body length = %d, want %d", gotBody, len(data))
	}
}

func TestUploadErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"errcode":"M_UNKNOWN_TOKEN","error":"Invalid access token"}`, publish.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{"errcode":"M_FORBIDDEN","error":"Cannot upload"}`, publish.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{"errcode":"M_LIMIT_EXCEEDED","error":"Too many requests"}`, publish.ErrRateLimited},
		{"server error", http.StatusInternalServerError, "", publish.ErrTransient},
		{"bad gateway", http.StatusBadGateway, "", publish.ErrTransient},
		{"too large", http.StatusRequestEntityTooLarge, `{"errcode":"M_TOO_LARGE","error":"Upload too large"}`, publish.ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "token")
			_, err := client.Upload(context.Background(), []byte("x"), "image/png")
			if !errors.Is(err, tt.want) {
				t.Errorf("Upload() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUploadRejectsNonMXCURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content_uri":"https://example.org/not-mxc"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	if _, err := client.Upload(context.Background(), []byte("x"), "image/png"); !errors.Is(err, publish.ErrRejected) {
		t.Errorf("Upload() error = %v, want ErrRejected", err)
	}
}

func TestUploadConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(server.URL, "token")
	if _, err := client.Upload(context.Background(), []byte("x"), "image/png"); !errors.Is(err, publish.ErrTransient) {
		t.Errorf("Upload() error = %v, want ErrTransient", err)
	}
}

func TestExistsAlwaysMisses(t *testing.T) {
	client := NewClient("https://matrix.example.org", "token")
	_, ok, err := client.Exists(context.Background(), "sha256:abc")
	if err != nil || ok {
		t.Errorf("Exists() = (%v, %v), want miss without error", ok, err)
	}
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	client := NewClient("https://matrix.example.org/", "token")
	if got := client.HomeserverURL(); got != "https://matrix.example.org" {
		t.Errorf("HomeserverURL() = %q", got)
	}
}
