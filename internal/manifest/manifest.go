// Package manifest builds sticker-picker pack manifests and maintains the
// persisted pack index consumed by the picker front-end. Manifests preserve
// source order and are written atomically so the index is never observed
// half-written.
package manifest

import (
	"strings"

	"github.com/mxpack/mxpack/internal/publish"
)

// thumbnailMax caps the advertised thumbnail dimensions so clients render
// stickers at a sane size.
const thumbnailMax = 256

// ImageInfo is the Matrix image metadata block.
type ImageInfo struct {
	Width    int    `json:"w"`
	Height   int    `json:"h"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimetype"`
}

// StickerInfo is ImageInfo plus the thumbnail block some clients require.
type StickerInfo struct {
	ImageInfo
	ThumbnailURL  string    `json:"thumbnail_url"`
	ThumbnailInfo ImageInfo `json:"thumbnail_info"`
}

// Sticker is one manifest descriptor. ID is the content digest, so a
// sticker's identity follows its converted bytes.
type Sticker struct {
	ID      string      `json:"id"`
	Body    string      `json:"body"`
	URL     string      `json:"url"`
	Info    StickerInfo `json:"info"`
	MsgType string      `json:"msgtype"`
}

// Pack is a published sticker pack manifest.
type Pack struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Stickers []Sticker `json:"stickers"`
}

// NewSticker builds a descriptor for a published asset. The thumbnail
// reuses the full image URL with dimensions scaled down to thumbnailMax on
// the long side.
func NewSticker(ref publish.ContentRef, width, height int, body string) Sticker {
	info := ImageInfo{
		Width:    width,
		Height:   height,
		Size:     ref.Size,
		MIMEType: ref.MIMEType,
	}

	thumbW, thumbH := width, height
	if width > thumbnailMax || height > thumbnailMax {
		if width > height {
			thumbH = height * thumbnailMax / width
			thumbW = thumbnailMax
		} else {
			thumbW = width * thumbnailMax / height
			thumbH = thumbnailMax
		}
	}
	thumbInfo := info
	thumbInfo.Width = thumbW
	thumbInfo.Height = thumbH

	return Sticker{
		ID:   ref.Digest,
		Body: body,
		URL:  ref.URI,
		Info: StickerInfo{
			ImageInfo:     info,
			ThumbnailURL:  ref.URI,
			ThumbnailInfo: thumbInfo,
		},
		MsgType: "m.sticker",
	}
}

// References returns the pack's digest→reference records, used to warm the
// dedup cache from a prior import of the same pack.
func (p *Pack) References() map[string]publish.ContentRef {
	refs := make(map[string]publish.ContentRef, len(p.Stickers))
	for _, s := range p.Stickers {
		if s.ID == "" || s.URL == "" {
			continue
		}
		refs[s.ID] = publish.ContentRef{
			Digest:   s.ID,
			URI:      s.URL,
			Size:     s.Info.Size,
			MIMEType: s.Info.MIMEType,
		}
	}
	return refs
}

// SanitizeID turns an arbitrary pack title into a pack identifier: spaces
// become underscores and everything outside a conservative allowed set is
// dropped.
func SanitizeID(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == '/', r == '.', r == '#':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BodyFromFilename derives sticker body text from an asset filename: the
// extension goes, and a leading "NNN-" ordering prefix is stripped.
func BodyFromFilename(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	if prefix, rest, ok := strings.Cut(name, "-"); ok && prefix != "" && isDecimal(prefix) {
		return rest
	}
	return name
}

func isDecimal(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
