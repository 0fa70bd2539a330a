package waveform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/vlr"
)

func descriptorVLR(index uint8, d Descriptor) vlr.VLR {
	return vlr.VLR{
		UserID:   vlr.WaveformDescriptorUserID,
		RecordID: vlr.WaveformDescriptorRecordID(index),
		Data:     d.Encode(),
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := Descriptor{
		BitsPerSample:   16,
		NumberOfSamples: 120,
		TemporalSpacing: 1000,
		DigitizerGain:   0.5,
		DigitizerOffset: -2.25,
	}

	decoded, err := DecodeDescriptor(d.Encode())
	require.NoError(t, err)
	require.Equal(t, d, decoded)
}

func TestDescriptorValidation(t *testing.T) {
	t.Run("compressed packets unsupported", func(t *testing.T) {
		d := Descriptor{BitsPerSample: 8, CompressionType: 1, NumberOfSamples: 10}
		require.ErrorIs(t, d.Validate(), errs.ErrCompressedWaveformUnsupported)
	})

	t.Run("misaligned sample width", func(t *testing.T) {
		d := Descriptor{BitsPerSample: 12, NumberOfSamples: 10}
		require.ErrorIs(t, d.Validate(), errs.ErrUnsupportedSampleWidth)
	})

	t.Run("word sizes", func(t *testing.T) {
		for bits, want := range map[uint8]int{8: 1, 16: 2, 32: 4, 64: 8} {
			d := Descriptor{BitsPerSample: bits}
			word, err := d.SampleWordSize()
			require.NoError(t, err)
			require.Equal(t, want, word)
		}
	})
}

func TestRegistryFromVLRs(t *testing.T) {
	base := Descriptor{BitsPerSample: 16, NumberOfSamples: 60, TemporalSpacing: 500}

	t.Run("descriptors keyed by point index", func(t *testing.T) {
		reg, err := RegistryFromVLRs([]vlr.VLR{
			{UserID: "other", RecordID: 100},
			descriptorVLR(2, base),
			descriptorVLR(1, base),
		})
		require.NoError(t, err)
		require.Equal(t, 2, reg.Len())
		require.False(t, reg.Empty())
		require.Equal(t, 2*60, reg.PacketSize())
		require.Equal(t, uint32(500), reg.SampleSpacing())

		_, ok := reg.Descriptor(1)
		require.True(t, ok)
		_, ok = reg.Descriptor(3)
		require.False(t, ok)
	})

	t.Run("index zero never resolves", func(t *testing.T) {
		reg, err := RegistryFromVLRs([]vlr.VLR{descriptorVLR(1, base)})
		require.NoError(t, err)
		_, ok := reg.Descriptor(0)
		require.False(t, ok)
	})

	t.Run("empty catalog is not an error", func(t *testing.T) {
		reg, err := RegistryFromVLRs(nil)
		require.NoError(t, err)
		require.True(t, reg.Empty())
		require.Zero(t, reg.PacketSize())
	})

	t.Run("heterogeneous descriptors rejected", func(t *testing.T) {
		other := base
		other.NumberOfSamples = 99

		_, err := RegistryFromVLRs([]vlr.VLR{
			descriptorVLR(1, base),
			descriptorVLR(2, other),
		})
		require.ErrorIs(t, err, errs.ErrHeterogeneousDescriptors)
	})

	t.Run("valid mask follows registry membership", func(t *testing.T) {
		reg, err := RegistryFromVLRs([]vlr.VLR{descriptorVLR(1, base), descriptorVLR(2, base)})
		require.NoError(t, err)
		require.Equal(t, []bool{true, true, false, false}, reg.ValidMask([]uint8{1, 2, 3, 0}))
	})
}
