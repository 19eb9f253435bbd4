// Package format classifies raw sticker bytes into the closed set of media
// kinds the conversion engine understands. Classification is content-sniffing
// based; filename and MIME hints from the source platform are unreliable and
// only break ties when the bytes themselves are ambiguous.
package format

// Kind is the detected media kind of a sticker asset.
type Kind int

const (
	// Unknown means the bytes match none of the supported formats.
	// It is a valid, non-fatal classification; the conversion engine
	// records a skip instead of failing the batch.
	Unknown Kind = iota

	// StaticRaster is a single still raster image (PNG, JPEG, static WebP).
	StaticRaster

	// AnimatedRaster is a frame-based raster animation (GIF, APNG,
	// animated WebP).
	AnimatedRaster

	// VectorAnimation is a vector animation that must be decoded to raster
	// frames before conversion (TGS, i.e. gzipped Lottie JSON).
	VectorAnimation
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case StaticRaster:
		return "static"
	case AnimatedRaster:
		return "animated"
	case VectorAnimation:
		return "vector"
	default:
		return "unknown"
	}
}
