//go:build !cgo

package laz

import (
	"github.com/arloliu/laspack/compress"
)

const externalCodecAvailable = false

func newExternalCodec() (compress.Codec, error) {
	return nil, unavailableErr("external-library")
}
