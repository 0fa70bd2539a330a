package waveform

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/laspack/errs"
)

func TestCoalesceRuns(t *testing.T) {
	tests := []struct {
		name   string
		sorted []uint64
		want   []run
	}{
		{
			name:   "gaps split runs",
			sorted: []uint64{0, 1, 3, 4, 6},
			want:   []run{{0, 1}, {3, 4}, {6, 6}},
		},
		{
			name:   "empty input",
			sorted: nil,
			want:   nil,
		},
		{
			name:   "single packet",
			sorted: []uint64{5},
			want:   []run{{5, 5}},
		},
		{
			name:   "fully contiguous",
			sorted: []uint64{2, 3, 4, 5},
			want:   []run{{2, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, coalesceRuns(tt.sorted))
		})
	}
}

func TestDedupOffsets(t *testing.T) {
	t.Run("duplicates collapse and rank by ascending offset", func(t *testing.T) {
		distinct, ranks := dedupOffsets([]uint64{30, 10, 30, 0}, nil)
		require.Equal(t, []uint64{0, 10, 30}, distinct)
		require.Equal(t, []int{2, 1, 2, 0}, ranks)
	})

	t.Run("invalid points excluded", func(t *testing.T) {
		distinct, ranks := dedupOffsets([]uint64{5, 7, 9}, []bool{true, false, true})
		require.Equal(t, []uint64{5, 9}, distinct)
		require.Equal(t, []int{0, -1, 1}, ranks)
	})
}

// testWaveFile builds a reader over n sequential packets where packet i is
// filled with byte i+1.
func testWaveFile(t *testing.T, packetSize, n int) (*Reader, []byte) {
	t.Helper()

	data := make([]byte, packetSize*n)
	for i := 0; i < n; i++ {
		for j := 0; j < packetSize; j++ {
			data[i*packetSize+j] = byte(i + 1)
		}
	}
	r, err := NewReader(bytes.NewReader(data), packetSize)
	require.NoError(t, err)

	return r, data
}

func TestMaterializeDistinctPackets(t *testing.T) {
	const w = 4
	reader, data := testWaveFile(t, w, 8)

	// Four points, three distinct packets, out of order with a duplicate.
	offsets := []uint64{0, 2 * w, 3 * w, 0}
	sizes := []uint32{w, w, w, w}

	rec, indexes, err := Materialize(reader, offsets, sizes, 1000)
	require.NoError(t, err)
	require.Equal(t, 3, rec.Len())
	require.Equal(t, []int{0, 1, 2, 0}, indexes)
	require.Equal(t, uint32(1000), rec.SampleSpacing())

	// Each point's indexed packet holds the raw bytes at its offset.
	for p, off := range offsets {
		require.Equal(t, data[off:off+w], rec.Packet(indexes[p]), "point %d", p)
	}
}

func TestMaterializeSizeVarianceIsFatal(t *testing.T) {
	reader, _ := testWaveFile(t, 4, 4)

	_, _, err := Materialize(reader, []uint64{0, 4}, []uint32{4, 8}, 0)
	require.ErrorIs(t, err, errs.ErrInconsistentWaveformSizes)
}

func TestMaterializeNilReader(t *testing.T) {
	_, _, err := Materialize(nil, []uint64{0}, []uint32{4}, 0)
	require.ErrorIs(t, err, errs.ErrNoWaveformReader)
}

func TestMaterializeEmptyBatch(t *testing.T) {
	reader, _ := testWaveFile(t, 4, 4)

	rec, indexes, err := Materialize(reader, nil, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, rec.Len())
	require.Empty(t, indexes)
}

func TestWriteDeduplicated(t *testing.T) {
	const w = 4
	reader, data := testWaveFile(t, w, 8)

	t.Run("duplicates share one packet", func(t *testing.T) {
		var out bytes.Buffer
		offsets := []uint64{0, 2 * w, 3 * w, 0}

		newOffsets, err := WriteDeduplicated(&out, offsets, nil, reader, w, 2)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, w, 2 * w, 0}, newOffsets)

		want := append(append(append([]byte{}, data[0:w]...), data[2*w:3*w]...), data[3*w:4*w]...)
		require.Equal(t, want, out.Bytes())
	})

	t.Run("invalid points share trailing placeholder", func(t *testing.T) {
		var out bytes.Buffer
		offsets := []uint64{2 * w, 0, 5 * w}
		valid := []bool{true, false, true}

		newOffsets, err := WriteDeduplicated(&out, offsets, valid, reader, w, 8)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 2 * w, w}, newOffsets)

		require.Len(t, out.Bytes(), 3*w)
		require.Equal(t, make([]byte, w), out.Bytes()[2*w:], "placeholder is all zero")
	})

	t.Run("all invalid writes one placeholder at offset zero", func(t *testing.T) {
		var out bytes.Buffer
		newOffsets, err := WriteDeduplicated(&out, []uint64{4, 8}, []bool{false, false}, nil, w, 1)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 0}, newOffsets)
		require.Equal(t, make([]byte, w), out.Bytes())
	})

	t.Run("zero points writes nothing", func(t *testing.T) {
		var out bytes.Buffer
		newOffsets, err := WriteDeduplicated(&out, nil, nil, nil, w, 1)
		require.NoError(t, err)
		require.Empty(t, newOffsets)
		require.Empty(t, out.Bytes())
	})
}

// failWriter fails the test on any write.
type failWriter struct{ t *testing.T }

func (f *failWriter) Write(p []byte) (int, error) {
	f.t.Fatalf("unexpected write of %d bytes", len(p))
	return 0, nil
}

func TestWriteDeduplicatedValidation(t *testing.T) {
	reader, _ := testWaveFile(t, 4, 4)

	t.Run("chunk size validated before any byte", func(t *testing.T) {
		_, err := WriteDeduplicated(&failWriter{t}, []uint64{0}, nil, reader, 4, 0)
		require.ErrorIs(t, err, errs.ErrNonPositiveChunkSize)
	})

	t.Run("mask length mismatch", func(t *testing.T) {
		_, err := WriteDeduplicated(&failWriter{t}, []uint64{0, 4}, []bool{true}, reader, 4, 1)
		require.ErrorIs(t, err, errs.ErrMaskLengthMismatch)
	})

	t.Run("missing reader", func(t *testing.T) {
		_, err := WriteDeduplicated(&failWriter{t}, []uint64{0}, nil, nil, 4, 1)
		require.ErrorIs(t, err, errs.ErrNoWaveformReader)
	})
}

func TestWriteMaterialized(t *testing.T) {
	const w = 4
	samples := []byte{1, 1, 1, 1, 2, 2, 2, 2}
	rec, err := NewRecord(samples, w, 0)
	require.NoError(t, err)

	t.Run("packets re-emitted in record order", func(t *testing.T) {
		var out bytes.Buffer
		newOffsets, err := WriteMaterialized(&out, rec, []int{1, 0, 1}, nil, 1)
		require.NoError(t, err)
		require.Equal(t, []uint64{w, 0, w}, newOffsets)
		require.Equal(t, samples, out.Bytes())
	})

	t.Run("negative index gets placeholder", func(t *testing.T) {
		var out bytes.Buffer
		newOffsets, err := WriteMaterialized(&out, rec, []int{0, -1}, nil, 8)
		require.NoError(t, err)
		require.Equal(t, []uint64{0, 2 * w}, newOffsets)
		require.Equal(t, make([]byte, w), out.Bytes()[2*w:])
	})

	t.Run("chunk size validated first", func(t *testing.T) {
		_, err := WriteMaterialized(&failWriter{t}, rec, []int{0}, nil, 0)
		require.ErrorIs(t, err, errs.ErrNonPositiveChunkSize)
	})
}

func TestRecordValidation(t *testing.T) {
	_, err := NewRecord(make([]byte, 7), 4, 0)
	require.ErrorIs(t, err, errs.ErrInconsistentWaveformSizes)
}

func TestRecordWithPlaceholder(t *testing.T) {
	rec, err := NewRecord([]byte{1, 2, 3, 4}, 2, 1000)
	require.NoError(t, err)

	padded := rec.WithPlaceholder()
	require.Equal(t, 3, padded.Len())
	require.Equal(t, []byte{0, 0}, padded.Packet(2))
	require.Equal(t, []byte{1, 2}, padded.Packet(0))
	require.Equal(t, 2, rec.Len(), "original record untouched")
}
