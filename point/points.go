// Package point holds packed point record buffers.
//
// A PackedPoints value is the unit the stream interfaces move around: a
// contiguous byte buffer of fixed-size records plus the format describing
// them. Field access stays byte-oriented; the accessors laspack needs are
// the wave packet sub-fields the waveform engine reads and rewrites.
package point

import (
	"fmt"

	"github.com/arloliu/laspack/endian"
	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
)

// PackedPoints is a buffer of len/size contiguous point records.
type PackedPoints struct {
	buf    []byte
	format format.PointFormat
}

// NewPackedPoints wraps a raw buffer. The buffer length must be a multiple
// of the format's record size.
func NewPackedPoints(buf []byte, f format.PointFormat) (*PackedPoints, error) {
	if size := f.Size(); size == 0 || len(buf)%size != 0 {
		return nil, fmt.Errorf("buffer %d bytes, record size %d: %w", len(buf), f.Size(), errs.ErrPointSizeMismatch)
	}

	return &PackedPoints{buf: buf, format: f}, nil
}

// Empty returns a zero-length point buffer of the given format.
func Empty(f format.PointFormat) *PackedPoints {
	return &PackedPoints{format: f}
}

// Zeroed returns an all-zero buffer of n records.
func Zeroed(f format.PointFormat, n int) *PackedPoints {
	return &PackedPoints{buf: make([]byte, n*f.Size()), format: f}
}

// Len returns the number of records.
func (p *PackedPoints) Len() int {
	if p.format.Size() == 0 {
		return 0
	}

	return len(p.buf) / p.format.Size()
}

// Bytes returns the underlying buffer.
func (p *PackedPoints) Bytes() []byte {
	return p.buf
}

// Format returns the record layout.
func (p *PackedPoints) Format() format.PointFormat {
	return p.format
}

// Record returns the raw bytes of record i.
func (p *PackedPoints) Record(i int) []byte {
	size := p.format.Size()
	return p.buf[i*size : (i+1)*size]
}

// Slice returns a view of records [i, j). The view shares memory with p.
func (p *PackedPoints) Slice(i, j int) *PackedPoints {
	size := p.format.Size()
	return &PackedPoints{buf: p.buf[i*size : j*size], format: p.format}
}

// Append concatenates other's records onto p. Formats must match.
func (p *PackedPoints) Append(other *PackedPoints) error {
	if other.format != p.format {
		return fmt.Errorf("appending format %d records to format %d buffer: %w",
			other.format.ID, p.format.ID, errs.ErrPointSizeMismatch)
	}
	p.buf = append(p.buf, other.buf...)

	return nil
}

func (p *PackedPoints) wavePacketBase(i int) (int, error) {
	off := p.format.WavePacketOffset()
	if off < 0 {
		return 0, errs.ErrNoWavePacketField
	}

	return i*p.format.Size() + off, nil
}

// WavePacketOffsets extracts the waveform byte offset of every record.
func (p *PackedPoints) WavePacketOffsets() ([]uint64, error) {
	if !p.format.HasWavePacket() {
		return nil, errs.ErrNoWavePacketField
	}

	engine := endian.GetLittleEndianEngine()
	size := p.format.Size()
	base := p.format.WavePacketOffset() + format.WavePacketByteOffsetOffset
	out := make([]uint64, p.Len())
	for i := range out {
		out[i] = engine.Uint64(p.buf[i*size+base:])
	}

	return out, nil
}

// WavePacketSizes extracts the waveform packet size of every record.
func (p *PackedPoints) WavePacketSizes() ([]uint32, error) {
	if !p.format.HasWavePacket() {
		return nil, errs.ErrNoWavePacketField
	}

	engine := endian.GetLittleEndianEngine()
	size := p.format.Size()
	base := p.format.WavePacketOffset() + format.WavePacketSizeOffset
	out := make([]uint32, p.Len())
	for i := range out {
		out[i] = engine.Uint32(p.buf[i*size+base:])
	}

	return out, nil
}

// WavePacketDescriptorIndexes extracts the descriptor index of every record.
func (p *PackedPoints) WavePacketDescriptorIndexes() ([]uint8, error) {
	if !p.format.HasWavePacket() {
		return nil, errs.ErrNoWavePacketField
	}

	size := p.format.Size()
	base := p.format.WavePacketOffset() + format.WavePacketDescriptorIndexOffset
	out := make([]uint8, p.Len())
	for i := range out {
		out[i] = p.buf[i*size+base]
	}

	return out, nil
}

// SetWavePacketOffset rewrites record i's waveform byte offset.
func (p *PackedPoints) SetWavePacketOffset(i int, v uint64) error {
	base, err := p.wavePacketBase(i)
	if err != nil {
		return err
	}
	endian.GetLittleEndianEngine().PutUint64(p.buf[base+format.WavePacketByteOffsetOffset:], v)

	return nil
}

// SetWavePacketSize rewrites record i's waveform packet size.
func (p *PackedPoints) SetWavePacketSize(i int, v uint32) error {
	base, err := p.wavePacketBase(i)
	if err != nil {
		return err
	}
	endian.GetLittleEndianEngine().PutUint32(p.buf[base+format.WavePacketSizeOffset:], v)

	return nil
}

// SetWavePacketDescriptorIndex rewrites record i's descriptor index.
func (p *PackedPoints) SetWavePacketDescriptorIndex(i int, v uint8) error {
	base, err := p.wavePacketBase(i)
	if err != nil {
		return err
	}
	p.buf[base+format.WavePacketDescriptorIndexOffset] = v

	return nil
}
