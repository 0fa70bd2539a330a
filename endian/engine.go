// Package endian provides byte order utilities for binary encoding and decoding.
//
// Every LAS structure is little-endian on disk, so callers reach for
// GetLittleEndianEngine() at each encode or decode site.
package endian

import (
	"encoding/binary"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from
// encoding/binary into a single interface for convenient byte order
// operations.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian
// from the standard library.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine, the byte order of
// every LAS structure.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}
