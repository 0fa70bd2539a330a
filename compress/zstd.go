package compress

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// ZstdCodec provides Zstandard chunk compression.
//
// The codec holds one encoder and one decoder for its lifetime; the
// klauspost/compress/zstd library is explicitly designed for reuse and
// operates without allocations after a warmup. A codec belongs to a single
// stream session and is not safe for concurrent use, matching the
// single-caller contract of the point streams it serves.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a Zstd codec.
//
// concurrency is the number of worker goroutines the encoder and decoder may
// use; values below 1 are clamped to 1, and values above the host's CPU
// count are clamped down. The parallelism is internal to EncodeAll /
// DecodeAll calls, the codec still presents a synchronous contract.
func NewZstdCodec(concurrency int) (*ZstdCodec, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if max := runtime.GOMAXPROCS(0); concurrency > max {
		concurrency = max
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(concurrency),
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(concurrency),
		zstd.WithDecoderLowmem(false),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &ZstdCodec{enc: enc, dec: dec}, nil
}

// Compress compresses the input data using Zstandard compression.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return c.enc.EncodeAll(data, nil), nil
}

// Decompress decompresses the input data using Zstandard decompression.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return c.dec.DecodeAll(data, nil)
}
