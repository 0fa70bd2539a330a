// Package compress provides the chunk codecs used by the compressed point
// stream backends.
//
// A codec works on whole chunks of packed point records: the writer hands it
// one chunk of raw records, the reader hands back the compressed bytes of
// one chunk. Codecs carry no framing of their own; chunk boundaries,
// lengths and checksums live in the stream layer.
package compress

import (
	"fmt"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
)

// Compressor compresses one chunk of packed point records.
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	//
	// The returned slice is newly allocated and owned by the caller. The
	// input slice is not modified. Internal buffers may be reused.
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses one chunk of packed point records.
type Decompressor interface {
	// Decompress decompresses the input data and returns the original result.
	//
	// The input must have been produced by the matching Compress. The
	// returned slice is newly allocated and owned by the caller.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// ByType returns the codec implementing the given compression type.
//
// concurrency bounds the number of goroutines a codec may use internally;
// values below 1 mean single-threaded. Only the Zstd codec honors it, the
// block codecs are single-threaded by nature.
func ByType(typ format.CompressionType, concurrency int) (Codec, error) {
	switch typ {
	case format.CompressionNone:
		return NewNoOpCodec(), nil
	case format.CompressionZstd:
		return NewZstdCodec(concurrency)
	case format.CompressionS2:
		return NewS2Codec(), nil
	case format.CompressionLZ4:
		return NewLZ4Codec(), nil
	default:
		return nil, fmt.Errorf("compression type 0x%02x: %w", uint8(typ), errs.ErrUnsupportedCompressionType)
	}
}
