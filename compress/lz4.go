package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4 block output carries a one-byte marker: CompressBlock reports an
// incompressible block with n == 0, and such chunks are stored raw.
const (
	lz4BlockRaw        = 0
	lz4BlockCompressed = 1
)

// LZ4Codec provides LZ4 block chunk compression.
type LZ4Codec struct{}

var _ Codec = (*LZ4Codec)(nil)

// NewLZ4Codec creates a new LZ4 codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses the input data using LZ4 block compression.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, 1+lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst[1:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		out := make([]byte, 1+len(data))
		out[0] = lz4BlockRaw
		copy(out[1:], data)

		return out, nil
	}
	dst[0] = lz4BlockCompressed

	return dst[:1+n], nil
}

// Decompress decompresses the input data using LZ4 block decompression.
//
// LZ4 blocks do not record the decompressed size, so the buffer starts at
// 4x the compressed size and doubles on short-buffer errors up to a 128MB
// safety limit. Point chunks are bounded by the chunk size a writer used,
// so the limit is only reachable on corrupted input.
func (c LZ4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	marker, block := data[0], data[1:]
	if marker == lz4BlockRaw {
		out := make([]byte, len(block))
		copy(out, block)

		return out, nil
	}
	if marker != lz4BlockCompressed {
		return nil, fmt.Errorf("lz4 block marker %d", marker)
	}

	bufSize := len(block) * 4
	const maxSize = 128 * 1024 * 1024

	for bufSize <= maxSize {
		buf := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(block, buf)
		if err != nil {
			if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && bufSize < maxSize {
				bufSize *= 2
				continue
			}

			return nil, err
		}

		return buf[:n], nil
	}

	return nil, lz4.ErrInvalidSourceShortBuffer
}
