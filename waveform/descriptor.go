// Package waveform resolves, deduplicates and streams the full-waveform
// sample packets referenced by point records.
//
// Waveform samples live in a sibling random-access file as a raw
// concatenation of fixed-size packets with no framing of their own; points
// address them by byte offset. The engine here reduces per-point offsets to
// distinct packets, coalesces sorted packets into sequential runs so each
// run costs one seek and one read, and rewrites tightly packed layouts on
// emission.
package waveform

import (
	"fmt"
	"math"

	"github.com/arloliu/laspack/endian"
	"github.com/arloliu/laspack/errs"
)

// DescriptorSize is the serialized size of a waveform packet descriptor.
const DescriptorSize = 26

// Descriptor is the decoded payload of a waveform packet descriptor VLR.
type Descriptor struct {
	BitsPerSample   uint8
	CompressionType uint8
	NumberOfSamples uint32
	// TemporalSpacing is the sample interval in picoseconds.
	TemporalSpacing uint32
	DigitizerGain   float64
	DigitizerOffset float64
}

// DecodeDescriptor parses a descriptor record payload.
func DecodeDescriptor(data []byte) (Descriptor, error) {
	if len(data) < DescriptorSize {
		return Descriptor{}, fmt.Errorf("descriptor payload %d bytes, need %d: %w",
			len(data), DescriptorSize, errs.ErrHeaderMismatch)
	}

	engine := endian.GetLittleEndianEngine()

	return Descriptor{
		BitsPerSample:   data[0],
		CompressionType: data[1],
		NumberOfSamples: engine.Uint32(data[2:6]),
		TemporalSpacing: engine.Uint32(data[6:10]),
		DigitizerGain:   math.Float64frombits(engine.Uint64(data[10:18])),
		DigitizerOffset: math.Float64frombits(engine.Uint64(data[18:26])),
	}, nil
}

// Encode serializes the descriptor as a record payload.
func (d Descriptor) Encode() []byte {
	engine := endian.GetLittleEndianEngine()
	data := make([]byte, DescriptorSize)
	data[0] = d.BitsPerSample
	data[1] = d.CompressionType
	engine.PutUint32(data[2:6], d.NumberOfSamples)
	engine.PutUint32(data[6:10], d.TemporalSpacing)
	engine.PutUint64(data[10:18], math.Float64bits(d.DigitizerGain))
	engine.PutUint64(data[18:26], math.Float64bits(d.DigitizerOffset))

	return data
}

// Validate checks the descriptor against the supported variations.
func (d Descriptor) Validate() error {
	if d.CompressionType != 0 {
		return fmt.Errorf("descriptor compression type %d: %w",
			d.CompressionType, errs.ErrCompressedWaveformUnsupported)
	}
	if _, err := d.SampleWordSize(); err != nil {
		return err
	}

	return nil
}

// SampleWordSize returns the smallest unsigned word size, in bytes, that
// holds one sample.
func (d Descriptor) SampleWordSize() (int, error) {
	switch {
	case d.BitsPerSample == 0 || d.BitsPerSample%8 != 0:
		return 0, fmt.Errorf("bits per sample %d: %w", d.BitsPerSample, errs.ErrUnsupportedSampleWidth)
	case d.BitsPerSample <= 8:
		return 1, nil
	case d.BitsPerSample <= 16:
		return 2, nil
	case d.BitsPerSample <= 32:
		return 4, nil
	case d.BitsPerSample <= 64:
		return 8, nil
	default:
		return 0, fmt.Errorf("bits per sample %d: %w", d.BitsPerSample, errs.ErrUnsupportedSampleWidth)
	}
}

// PacketSize returns the fixed byte size of one waveform packet described
// by this descriptor.
func (d Descriptor) PacketSize() (int, error) {
	word, err := d.SampleWordSize()
	if err != nil {
		return 0, err
	}

	return word * int(d.NumberOfSamples), nil
}
