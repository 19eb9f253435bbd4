package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/mxpack/mxpack/internal/publish"
)

func testPack(id, title string, bodies ...string) *Pack {
	pack := &Pack{ID: id, Title: title}
	for _, body := range bodies {
		ref := publish.ContentRef{
			Digest:   "sha256:" + body,
			URI:      "mxc://example.org/" + body,
			Size:     int64(len(body)),
			MIMEType: "image/png",
		}
		pack.Stickers = append(pack.Stickers, NewSticker(ref, 64, 64, body))
	}
	return pack
}

func TestMergeAndReload(t *testing.T) {
	dir := t.TempDir()
	ix, err := OpenIndex(dir, "https://matrix.example.org")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}

	if err := ix.Merge(testPack("cats", "Cats", "sleepy", "hungry")); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	pack, ok, err := ix.Pack("cats")
	if err != nil || !ok {
		t.Fatalf("Pack() = (%v, %v), want loaded pack", ok, err)
	}
	if pack.Title != "Cats" || len(pack.Stickers) != 2 {
		t.Errorf("reloaded pack = %+v", pack)
	}
	if pack.Stickers[0].Body != "sleepy" || pack.Stickers[1].Body != "hungry" {
		t.Error("sticker order changed across the round trip")
	}

	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("failed to read index.json: %v", err)
	}
	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("index.json is not valid JSON: %v", err)
	}
	if doc.HomeserverURL != "https://matrix.example.org" {
		t.Errorf("homeserver_url = %q", doc.HomeserverURL)
	}
	if !slices.Contains(doc.Packs, "cats.json") {
		t.Errorf("packs list %v does not contain cats.json", doc.Packs)
	}
}

func TestMergeLeavesOtherPacksAlone(t *testing.T) {
	dir := t.TempDir()
	ix, err := OpenIndex(dir, "")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}

	if err := ix.Merge(testPack("dogs", "Dogs", "bork")); err != nil {
		t.Fatalf("Merge(dogs) failed: %v", err)
	}
	dogsBefore, err := os.ReadFile(filepath.Join(dir, "dogs.json"))
	if err != nil {
		t.Fatalf("failed to read dogs.json: %v", err)
	}

	if err := ix.Merge(testPack("cats", "Cats", "meow")); err != nil {
		t.Fatalf("Merge(cats) failed: %v", err)
	}

	dogsAfter, err := os.ReadFile(filepath.Join(dir, "dogs.json"))
	if err != nil {
		t.Fatalf("failed to read dogs.json after second merge: %v", err)
	}
	if string(dogsBefore) != string(dogsAfter) {
		t.Error("merging one pack rewrote another pack's manifest")
	}

	data, _ := os.ReadFile(filepath.Join(dir, "index.json"))
	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("index.json is not valid JSON: %v", err)
	}
	if len(doc.Packs) != 2 {
		t.Errorf("packs list = %v, want both packs", doc.Packs)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	ix, err := OpenIndex(t.TempDir(), "")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}

	pack := testPack("cats", "Cats", "meow")
	if err := ix.Merge(pack); err != nil {
		t.Fatalf("first Merge failed: %v", err)
	}
	if err := ix.Merge(pack); err != nil {
		t.Fatalf("second Merge failed: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(ix.Dir(), "index.json"))
	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("index.json is not valid JSON: %v", err)
	}
	if len(doc.Packs) != 1 {
		t.Errorf("packs list = %v, want single entry after re-merge", doc.Packs)
	}
}

func TestMergeReplacesPackContents(t *testing.T) {
	ix, err := OpenIndex(t.TempDir(), "")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}

	if err := ix.Merge(testPack("cats", "Cats", "old")); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := ix.Merge(testPack("cats", "Cats v2", "new", "newer")); err != nil {
		t.Fatalf("re-merge failed: %v", err)
	}

	pack, ok, err := ix.Pack("cats")
	if err != nil || !ok {
		t.Fatalf("Pack() = (%v, %v)", ok, err)
	}
	if pack.Title != "Cats v2" || len(pack.Stickers) != 2 {
		t.Errorf("pack was not replaced: %+v", pack)
	}
}

func TestMergeRejectsEmptyID(t *testing.T) {
	ix, err := OpenIndex(t.TempDir(), "")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	if err := ix.Merge(&Pack{Title: "anonymous"}); err == nil {
		t.Error("Merge accepted a pack without an identifier")
	}
}

func TestPackMissing(t *testing.T) {
	ix, err := OpenIndex(t.TempDir(), "")
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	if _, ok, err := ix.Pack("never-imported"); ok || err != nil {
		t.Errorf("Pack() = (%v, %v), want clean miss", ok, err)
	}
}
