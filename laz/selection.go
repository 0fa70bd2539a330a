package laz

// DecompressionSelection restricts which field groups a codec decodes.
//
// It is a plain bitset value: methods return modified copies, so a built
// selection is immutable in practice. The base group (x, y, return counts,
// scanner channel) is always decoded and can never be unset.
//
// A selection is only meaningful for file version 1.4 with an extended
// point format (id >= 6); readers ignore it otherwise.
type DecompressionSelection uint16

const (
	// SelectBase covers x, y, the return numbers and the scanner channel.
	SelectBase DecompressionSelection = 1 << iota
	SelectZ
	SelectClassification
	SelectFlags
	SelectIntensity
	SelectScanAngle
	SelectUserData
	SelectPointSourceID
	SelectGPSTime
	SelectRGB
	SelectNIR
	SelectWavePacket
	SelectAllExtraBytes

	selectLast = SelectAllExtraBytes
)

// AllFields returns a selection with every group set.
func AllFields() DecompressionSelection {
	s := BaseOnly()
	for g := SelectBase; g <= selectLast; g <<= 1 {
		s = s.Decompress(g)
	}

	return s
}

// BaseOnly returns a selection with only the mandatory base group set.
func BaseOnly() DecompressionSelection {
	return SelectBase
}

// Decompress returns a copy with the group set.
func (s DecompressionSelection) Decompress(g DecompressionSelection) DecompressionSelection {
	return s | g
}

// Skip returns a copy with the group unset. Skipping the base group is a
// no-op.
func (s DecompressionSelection) Skip(g DecompressionSelection) DecompressionSelection {
	g &^= SelectBase
	return s &^ g
}

// IsSet reports whether the group is set.
func (s DecompressionSelection) IsSet(g DecompressionSelection) bool {
	return s&g != 0
}

// nativeSelectionBits translates each group to the native codec's selective
// decompression mask. Applied once at reader construction.
var nativeSelectionBits = map[DecompressionSelection]uint32{
	SelectBase:           0x00000001,
	SelectZ:              0x00000002,
	SelectClassification: 0x00000004,
	SelectFlags:          0x00000008,
	SelectIntensity:      0x00000010,
	SelectScanAngle:      0x00000020,
	SelectUserData:       0x00000040,
	SelectPointSourceID:  0x00000080,
	SelectGPSTime:        0x00000100,
	SelectRGB:            0x00000200,
	SelectNIR:            0x00000400,
	SelectWavePacket:     0x00000800,
	SelectAllExtraBytes:  0x00001000,
}

// externalSelectionBits translates each group to the external library's
// mask layout, where the base group is implicit and always decoded.
var externalSelectionBits = map[DecompressionSelection]uint32{
	SelectBase:           0x00000000,
	SelectZ:              0x00000001,
	SelectClassification: 0x00000002,
	SelectFlags:          0x00000004,
	SelectIntensity:      0x00000008,
	SelectScanAngle:      0x00000010,
	SelectUserData:       0x00000020,
	SelectPointSourceID:  0x00000040,
	SelectGPSTime:        0x00000080,
	SelectRGB:            0x00000100,
	SelectNIR:            0x00000200,
	SelectWavePacket:     0x00000400,
	SelectAllExtraBytes:  0x00000800,
}

// ToNative converts the selection to the native codec's mask.
func (s DecompressionSelection) ToNative() uint32 {
	mask := nativeSelectionBits[SelectBase]
	for g := SelectBase; g <= selectLast; g <<= 1 {
		if s.IsSet(g) {
			mask |= nativeSelectionBits[g]
		}
	}

	return mask
}

// ToExternal converts the selection to the external library's mask.
func (s DecompressionSelection) ToExternal() uint32 {
	mask := externalSelectionBits[SelectBase]
	for g := SelectBase; g <= selectLast; g <<= 1 {
		if s.IsSet(g) {
			mask |= externalSelectionBits[g]
		}
	}

	return mask
}
