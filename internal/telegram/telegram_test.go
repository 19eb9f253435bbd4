package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testToken = "123456:TESTTOKEN"

// botAPIServer fakes the two Bot API methods the connector uses plus the
// file download path.
func botAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/bot"+testToken+"/getStickerSet", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("name") {
		case "good_pack":
			fmt.Fprint(w, `{"ok":true,"result":{
				"name":"good_pack","title":"Good Pack",
				"stickers":[
					{"file_id":"f1","file_unique_id":"u1","emoji":"😀"},
					{"file_id":"f2","file_unique_id":"u2","emoji":"🎉","is_animated":true}
				]}}`)
		default:
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: STICKERSET_INVALID"}`)
		}
	})

	mux.HandleFunc("/bot"+testToken+"/getFile", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("file_id") {
		case "f1":
			fmt.Fprint(w, `{"ok":true,"result":{"file_path":"stickers/file_1.webp"}}`)
		case "f2":
			fmt.Fprint(w, `{"ok":true,"result":{"file_path":"stickers/file_2.tgs"}}`)
		default:
			fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`)
		}
	})

	mux.HandleFunc("/file/bot"+testToken+"/stickers/file_1.webp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("webp payload"))
	})
	mux.HandleFunc("/file/bot"+testToken+"/stickers/file_2.tgs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tgs payload"))
	})

	return httptest.NewServer(mux)
}

func TestGetStickerSet(t *testing.T) {
	server := botAPIServer(t)
	defer server.Close()

	client := NewClient(testToken, WithAPIURL(server.URL))
	set, err := client.GetStickerSet(context.Background(), "good_pack")
	if err != nil {
		t.Fatalf("GetStickerSet failed: %v", err)
	}

	if set.Name != "good_pack" || set.Title != "Good Pack" {
		t.Errorf("unexpected set metadata: %+v", set)
	}
	if len(set.Stickers) != 2 {
		t.Fatalf("got %d stickers, want 2", len(set.Stickers))
	}
	// Declared order must survive the round trip.
	if set.Stickers[0].FileID != "f1" || set.Stickers[1].FileID != "f2" {
		t.Errorf("sticker order changed: %+v", set.Stickers)
	}
	if !set.Stickers[1].IsAnimated {
		t.Error("second sticker lost its animated flag")
	}
}

func TestGetStickerSetNotFound(t *testing.T) {
	server := botAPIServer(t)
	defer server.Close()

	client := NewClient(testToken, WithAPIURL(server.URL))
	if _, err := client.GetStickerSet(context.Background(), "no_such_pack"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStickerSet() error = %v, want ErrNotFound", err)
	}
}

func TestGetStickerSetServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(testToken, WithAPIURL(server.URL))
	if _, err := client.GetStickerSet(context.Background(), "any"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("GetStickerSet() error = %v, want ErrUnavailable", err)
	}
}

func TestDownload(t *testing.T) {
	server := botAPIServer(t)
	defer server.Close()

	client := NewClient(testToken, WithAPIURL(server.URL))

	data, hint, err := client.Download(context.Background(), "f1")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "webp payload" {
		t.Errorf("data = %q", data)
	}
	if hint != "image/webp" {
		t.Errorf("hint = %q, want image/webp", hint)
	}

	_, hint, err = client.Download(context.Background(), "f2")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if hint != "application/x-tgsticker" {
		t.Errorf("hint = %q, want application/x-tgsticker", hint)
	}
}

func TestDownloadUnknownFile(t *testing.T) {
	server := botAPIServer(t)
	defer server.Close()

	client := NewClient(testToken, WithAPIURL(server.URL))
	if _, _, err := client.Download(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download() error = %v, want ErrNotFound", err)
	}
}

func TestDownloadUnreachable(t *testing.T) {
	server := botAPIServer(t)
	server.Close() // refuse connections

	client := NewClient(testToken, WithAPIURL(server.URL))
	if _, _, err := client.Download(context.Background(), "f1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Download() error = %v, want ErrUnavailable", err)
	}
}

func TestMimeHint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"stickers/a.tgs", "application/x-tgsticker"},
		{"stickers/b.WEBP", "image/webp"},
		{"stickers/c.png", "image/png"},
		{"stickers/d.jpeg", "image/jpeg"},
		{"stickers/e.webm", "video/webm"},
		{"stickers/f", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := mimeHint(tt.path); got != tt.want {
			t.Errorf("mimeHint(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
