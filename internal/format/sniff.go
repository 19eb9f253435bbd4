package format

import (
	"bytes"
	"encoding/binary"
)

var (
	pngSignature  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSignature = []byte{0xff, 0xd8, 0xff}
	gif87Header   = []byte("GIF87a")
	gif89Header   = []byte("GIF89a")
	gzipMagic     = []byte{0x1f, 0x8b}
	riffMagic     = []byte("RIFF")
	webpFourCC    = []byte("WEBP")
)

// Detect classifies raw sticker bytes. The hint is an optional MIME type or
// filename supplied by the source platform and is consulted only when the
// content itself is ambiguous.
func Detect(data []byte, hint string) Kind {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		if pngIsAnimated(data) {
			return AnimatedRaster
		}
		return StaticRaster
	case bytes.HasPrefix(data, jpegSignature):
		return StaticRaster
	case bytes.HasPrefix(data, gif87Header), bytes.HasPrefix(data, gif89Header):
		return AnimatedRaster
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 16 && bytes.Equal(data[8:12], webpFourCC):
		if webpIsAnimated(data) {
			return AnimatedRaster
		}
		return StaticRaster
	case bytes.HasPrefix(data, gzipMagic):
		// TGS stickers are gzip-wrapped Lottie documents. Other gzipped
		// payloads will fail later in the decoder with a per-sticker error.
		return VectorAnimation
	case looksLikeLottie(data):
		return VectorAnimation
	}

	switch hint {
	case "application/x-tgsticker", "application/gzip":
		return VectorAnimation
	}
	return Unknown
}

// DetectMIME returns the MIME type of the container the bytes actually use,
// for labeling assets that are uploaded without conversion. Detect collapses
// containers into behavioral kinds; this preserves the container itself.
func DetectMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return "image/png"
	case bytes.HasPrefix(data, jpegSignature):
		return "image/jpeg"
	case bytes.HasPrefix(data, gif87Header), bytes.HasPrefix(data, gif89Header):
		return "image/gif"
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 16 && bytes.Equal(data[8:12], webpFourCC):
		return "image/webp"
	case bytes.HasPrefix(data, gzipMagic), looksLikeLottie(data):
		return "application/x-tgsticker"
	default:
		return "application/octet-stream"
	}
}

// pngIsAnimated reports whether an acTL chunk appears before the first IDAT,
// which marks the PNG as an APNG.
func pngIsAnimated(data []byte) bool {
	// Chunk stream starts after the 8-byte signature. Each chunk is
	// length(4) + type(4) + data + crc(4).
	off := len(pngSignature)
	for off+8 <= len(data) {
		length := binary.BigEndian.Uint32(data[off : off+4])
		typ := string(data[off+4 : off+8])
		switch typ {
		case "acTL":
			return true
		case "IDAT", "IEND":
			return false
		}
		next := off + 8 + int(length) + 4
		if next <= off || next > len(data) {
			return false
		}
		off = next
	}
	return false
}

// webpIsAnimated reports whether the VP8X extended header has the animation
// flag set.
func webpIsAnimated(data []byte) bool {
	if len(data) < 21 || !bytes.Equal(data[12:16], []byte("VP8X")) {
		return false
	}
	const animationBit = 0x02
	return data[20]&animationBit != 0
}

// looksLikeLottie reports whether the bytes are a bare (un-gzipped) Lottie
// JSON document. A full parse happens in the decoder; this only needs to be
// good enough to route the asset.
func looksLikeLottie(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return false
	}
	return bytes.Contains(trimmed, []byte(`"layers"`)) && bytes.Contains(trimmed, []byte(`"fr"`))
}
