package waldump

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// DecompressImage returns the full BLCKSZ page a block image represents,
// decompressing img.Raw if necessary. The "hole" (a run of zero bytes
// PostgreSQL elides from compressed and sparse images) is reinserted at
// img.HoleOffset.
func DecompressImage(img *BlockImage) ([]byte, error) {
	var body []byte

	switch img.Compress {
	case NoCompression:
		body = img.Raw

	case CompressLZ4:
		decompressed := make([]byte, XLogBlockSize-int(img.HoleLength))
		n, err := lz4.UncompressBlock(img.Raw, decompressed)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress block image: %w", err)
		}
		body = decompressed[:n]

	case CompressPGLZ, CompressZSTD:
		// No corpus-grounded library implements PostgreSQL's custom PGLZ
		// or a bare zstd frame reader here; these images are reported with
		// their compressed length and method but not expanded.
		return nil, fmt.Errorf("%s-compressed image: decompression not supported", img.Compress)

	default:
		return nil, fmt.Errorf("unknown compression method %d", img.Compress)
	}

	if img.HoleLength == 0 {
		return body, nil
	}

	page := make([]byte, XLogBlockSize)
	copy(page, body[:img.HoleOffset])
	copy(page[int(img.HoleOffset)+int(img.HoleLength):], body[img.HoleOffset:])
	return page, nil
}
