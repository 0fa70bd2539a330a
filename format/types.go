// Package format describes the fixed binary layouts of LAS point records.
//
// It is a pure catalog: given a point format id it answers which fields a
// record carries, how large the record is, and where the fields laspack
// cares about live inside it. It performs no I/O.
package format

import (
	"fmt"

	"github.com/arloliu/laspack/errs"
)

// CompressionType identifies the chunk compression recorded in a compressed
// file's codec record.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// standardSizes maps a point format id to the size of its standard fields,
// excluding extra bytes.
var standardSizes = map[uint8]uint16{
	0: 20, 1: 28, 2: 26, 3: 34, 4: 57, 5: 63,
	6: 30, 7: 36, 8: 38, 9: 59, 10: 67,
}

// wavePacketOffsets maps a point format id to the byte offset of its wave
// packet block. Formats without waveform support are absent.
var wavePacketOffsets = map[uint8]int{
	4: 28, 5: 34, 9: 30, 10: 38,
}

// Byte offsets of the wave packet sub-fields, relative to the start of the
// 29-byte wave packet block.
const (
	WavePacketDescriptorIndexOffset = 0  // uint8
	WavePacketByteOffsetOffset      = 1  // uint64
	WavePacketSizeOffset            = 9  // uint32
	WavePacketReturnLocationOffset  = 13 // float32
	WavePacketXtOffset              = 17 // float32
	WavePacketYtOffset              = 21 // float32
	WavePacketZtOffset              = 25 // float32
	WavePacketBlockSize             = 29
)

// PointFormat describes the record layout of one point format id, including
// any extra bytes appended after the standard fields.
type PointFormat struct {
	ID         uint8
	ExtraBytes uint16

	stdSize uint16
}

// New builds a PointFormat for the given id. The id must be an uncompressed
// format id (0-10); use UncompressedID first when reading it from a header.
func New(id uint8, extraBytes uint16) (PointFormat, error) {
	stdSize, ok := standardSizes[id]
	if !ok {
		return PointFormat{}, fmt.Errorf("point format %d: %w", id, errs.ErrUnsupportedPointFormat)
	}

	return PointFormat{ID: id, ExtraBytes: extraBytes, stdSize: stdSize}, nil
}

// FromRecordLength builds a PointFormat from a header's format id and record
// length, deriving the extra byte count from the length surplus.
func FromRecordLength(id uint8, recordLength uint16) (PointFormat, error) {
	id = UncompressedID(id)
	stdSize, ok := standardSizes[id]
	if !ok {
		return PointFormat{}, fmt.Errorf("point format %d: %w", id, errs.ErrUnsupportedPointFormat)
	}
	if recordLength < stdSize {
		return PointFormat{}, fmt.Errorf("record length %d below standard size %d of format %d: %w",
			recordLength, stdSize, id, errs.ErrInvalidRecordLength)
	}

	return PointFormat{ID: id, ExtraBytes: recordLength - stdSize, stdSize: stdSize}, nil
}

// Size returns the full record size, standard fields plus extra bytes.
func (f PointFormat) Size() int {
	return int(f.stdSize) + int(f.ExtraBytes)
}

// StandardSize returns the size of the standard fields only.
func (f PointFormat) StandardSize() int {
	return int(f.stdSize)
}

// HasGPSTime reports whether records carry a GPS time field.
func (f PointFormat) HasGPSTime() bool {
	return f.ID == 1 || f.ID >= 3
}

// HasRGB reports whether records carry red/green/blue fields.
func (f PointFormat) HasRGB() bool {
	switch f.ID {
	case 2, 3, 5, 7, 8, 10:
		return true
	default:
		return false
	}
}

// HasNIR reports whether records carry a near-infrared field.
func (f PointFormat) HasNIR() bool {
	return f.ID == 8 || f.ID == 10
}

// HasWavePacket reports whether records carry a wave packet block.
func (f PointFormat) HasWavePacket() bool {
	_, ok := wavePacketOffsets[f.ID]
	return ok
}

// IsExtended reports whether this is one of the extended formats (6-10)
// introduced with file version 1.4.
func (f PointFormat) IsExtended() bool {
	return f.ID >= 6
}

// WavePacketOffset returns the byte offset of the wave packet block within
// a record, or -1 when the format has none.
func (f PointFormat) WavePacketOffset() int {
	off, ok := wavePacketOffsets[f.ID]
	if !ok {
		return -1
	}

	return off
}

// Field identifies a standard field group within an extended point record.
// The groups match the selective-decompression granularity, so a skipped
// group maps to exactly one contiguous byte range.
type Field uint8

const (
	FieldZ Field = iota
	FieldFlags
	FieldClassification
	FieldUserData
	FieldScanAngle
	FieldIntensity
	FieldPointSourceID
	FieldGPSTime
	FieldRGB
	FieldNIR
	FieldWavePacket
	FieldExtraBytes
)

// FieldRange returns the byte range [start, end) of a field group within a
// record of this format. It only answers for the extended formats (6-10);
// for legacy formats ok is false for every group, matching the rule that
// selective decompression is ignored there.
func (f PointFormat) FieldRange(field Field) (start, end int, ok bool) {
	if !f.IsExtended() {
		return 0, 0, false
	}

	switch field {
	case FieldZ:
		return 8, 12, true
	case FieldIntensity:
		return 12, 14, true
	case FieldFlags:
		return 15, 16, true
	case FieldClassification:
		return 16, 17, true
	case FieldUserData:
		return 17, 18, true
	case FieldScanAngle:
		return 18, 20, true
	case FieldPointSourceID:
		return 20, 22, true
	case FieldGPSTime:
		return 22, 30, true
	case FieldRGB:
		if !f.HasRGB() {
			return 0, 0, false
		}

		return 30, 36, true
	case FieldNIR:
		if !f.HasNIR() {
			return 0, 0, false
		}

		return 36, 38, true
	case FieldWavePacket:
		off := f.WavePacketOffset()
		if off < 0 {
			return 0, 0, false
		}

		return off, off + WavePacketBlockSize, true
	case FieldExtraBytes:
		if f.ExtraBytes == 0 {
			return 0, 0, false
		}

		return int(f.stdSize), f.Size(), true
	default:
		return 0, 0, false
	}
}

// The compressed variant of a point format id sets bit 7 and clears bit 6.

// IsCompressedID reports whether a header's raw format id carries the
// compression flag.
func IsCompressedID(id uint8) bool {
	return id&0x80 != 0 && id&0x40 == 0
}

// CompressedID returns the compressed variant of an uncompressed format id.
func CompressedID(id uint8) uint8 {
	return id | 0x80
}

// UncompressedID strips the compression flag bits from a format id.
func UncompressedID(id uint8) uint8 {
	return id & 0x3F
}
