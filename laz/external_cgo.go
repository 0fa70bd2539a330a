//go:build cgo

package laz

import (
	"github.com/valyala/gozstd"

	"github.com/arloliu/laspack/compress"
)

const externalCodecAvailable = true

// externalCodec adapts the linked zstd library to the chunk codec
// interface.
type externalCodec struct{}

func newExternalCodec() (compress.Codec, error) {
	return externalCodec{}, nil
}

func (externalCodec) Compress(data []byte) ([]byte, error) {
	return gozstd.Compress(nil, data), nil
}

func (externalCodec) Decompress(data []byte) ([]byte, error) {
	return gozstd.Decompress(nil, data)
}
