package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/gofrs/flock"
)

// ErrIndexWrite marks a failure to persist the pack index. It is a
// pack-level error: the import aborts and nothing is merged.
var ErrIndexWrite = errors.New("manifest: index write failed")

// indexFile is the picker's entry point listing all pack files.
const indexFile = "index.json"

// indexDocument is the on-disk shape of index.json.
type indexDocument struct {
	HomeserverURL string   `json:"homeserver_url,omitempty"`
	Packs         []string `json:"packs"`
}

// Index is the persisted mapping from pack identifier to manifest: one
// <packid>.json per pack plus an index.json listing them, all inside one
// directory. Merging is guarded by an inter-process file lock and every
// write is temp-file-plus-rename, so concurrent importers and crashes never
// corrupt the index or touch other packs' files.
type Index struct {
	dir           string
	homeserverURL string
	lock          *flock.Flock
}

// OpenIndex prepares the index directory.
func OpenIndex(dir, homeserverURL string) (*Index, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w; create index directory: %v", ErrIndexWrite, err)
	}
	return &Index{
		dir:           dir,
		homeserverURL: homeserverURL,
		lock:          flock.New(filepath.Join(dir, ".index.lock")),
	}, nil
}

// Dir returns the index directory.
func (ix *Index) Dir() string { return ix.dir }

// packFile returns the manifest filename for a pack identifier.
func packFile(packID string) string {
	return packID + ".json"
}

// Pack loads a previously merged manifest, reporting ok=false when the pack
// has never been imported.
func (ix *Index) Pack(packID string) (*Pack, bool, error) {
	data, err := os.ReadFile(filepath.Join(ix.dir, packFile(packID)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read pack manifest; %w", err)
	}

	var pack Pack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, false, fmt.Errorf("corrupt pack manifest %s; %w", packFile(packID), err)
	}
	return &pack, true, nil
}

// Merge writes the pack's manifest and registers it in index.json,
// replacing only this pack's entry. Files belonging to other packs are not
// touched.
func (ix *Index) Merge(pack *Pack) error {
	if pack.ID == "" {
		return fmt.Errorf("%w; pack has no identifier", ErrIndexWrite)
	}

	if err := ix.lock.Lock(); err != nil {
		return fmt.Errorf("%w; acquire index lock: %v", ErrIndexWrite, err)
	}
	defer ix.lock.Unlock()

	doc, err := ix.readIndexLocked()
	if err != nil {
		return err
	}

	packData, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return fmt.Errorf("%w; encode pack: %v", ErrIndexWrite, err)
	}
	if err := ix.writeFileLocked(packFile(pack.ID), packData); err != nil {
		return err
	}

	if ix.homeserverURL != "" && doc.HomeserverURL == "" {
		doc.HomeserverURL = ix.homeserverURL
	}
	if !slices.Contains(doc.Packs, packFile(pack.ID)) {
		doc.Packs = append(doc.Packs, packFile(pack.ID))
	}

	indexData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w; encode index: %v", ErrIndexWrite, err)
	}
	return ix.writeFileLocked(indexFile, indexData)
}

// readIndexLocked loads index.json, treating a missing file as an empty
// index. Caller holds the lock.
func (ix *Index) readIndexLocked() (*indexDocument, error) {
	doc := &indexDocument{Packs: []string{}}

	data, err := os.ReadFile(filepath.Join(ix.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w; read index: %v", ErrIndexWrite, err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w; corrupt index.json: %v", ErrIndexWrite, err)
	}
	return doc, nil
}

// writeFileLocked commits a file atomically inside the index directory.
// Caller holds the lock.
func (ix *Index) writeFileLocked(name string, data []byte) error {
	target := filepath.Join(ix.dir, name)
	tmp, err := os.CreateTemp(ix.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w; create temp file: %v", ErrIndexWrite, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w; write %s: %v", ErrIndexWrite, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w; close %s: %v", ErrIndexWrite, name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w; commit %s: %v", ErrIndexWrite, name, err)
	}
	return nil
}
