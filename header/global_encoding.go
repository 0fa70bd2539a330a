package header

// GlobalEncoding is the packed flag field at byte offset 6 of the header.
//
// Bit 0 is the GPS time type, bit 1 marks waveform packets stored inside
// the file, bit 2 marks waveform packets stored in an external file, bit 3
// marks synthetic return numbers, bit 4 marks WKT coordinate system
// records. Bits 1 and 2 are mutually exclusive per the format.
type GlobalEncoding uint16

const (
	gpsTimeTypeMask      GlobalEncoding = 1 << 0
	waveformInternalMask GlobalEncoding = 1 << 1
	waveformExternalMask GlobalEncoding = 1 << 2
	syntheticReturnsMask GlobalEncoding = 1 << 3
	wktMask              GlobalEncoding = 1 << 4
)

// HasStandardGPSTime reports whether GPS time values are adjusted standard
// GPS time rather than GPS week time.
func (g GlobalEncoding) HasStandardGPSTime() bool {
	return g&gpsTimeTypeMask != 0
}

// HasWaveformInternal reports whether waveform packets live inside the file.
func (g GlobalEncoding) HasWaveformInternal() bool {
	return g&waveformInternalMask != 0
}

// SetWaveformInternal sets or clears the internal waveform storage bit.
func (g *GlobalEncoding) SetWaveformInternal(set bool) {
	if set {
		*g |= waveformInternalMask
	} else {
		*g &^= waveformInternalMask
	}
}

// HasWaveformExternal reports whether waveform packets live in a sibling
// external file.
func (g GlobalEncoding) HasWaveformExternal() bool {
	return g&waveformExternalMask != 0
}

// SetWaveformExternal sets or clears the external waveform storage bit.
func (g *GlobalEncoding) SetWaveformExternal(set bool) {
	if set {
		*g |= waveformExternalMask
	} else {
		*g &^= waveformExternalMask
	}
}

// HasSyntheticReturns reports whether return numbers were synthetically
// generated.
func (g GlobalEncoding) HasSyntheticReturns() bool {
	return g&syntheticReturnsMask != 0
}

// HasWKT reports whether coordinate system records use WKT.
func (g GlobalEncoding) HasWKT() bool {
	return g&wktMask != 0
}

// SetWKT sets or clears the WKT bit.
func (g *GlobalEncoding) SetWKT(set bool) {
	if set {
		*g |= wktMask
	} else {
		*g &^= wktMask
	}
}
