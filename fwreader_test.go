package laspack

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
	"github.com/arloliu/laspack/waveform"
)

const testPacketSize = 4

func testDescriptorVLR(index uint8) vlr.VLR {
	d := waveform.Descriptor{
		BitsPerSample:   8,
		NumberOfSamples: testPacketSize,
		TemporalSpacing: 1000,
	}

	return vlr.VLR{
		UserID:   vlr.WaveformDescriptorUserID,
		RecordID: vlr.WaveformDescriptorRecordID(index),
		Data:     d.Encode(),
	}
}

// writeWaveLAS builds a format 4 file whose four points reference three
// distinct packets ([0, 2w, 3w, 0]) in a sibling waveform file of four
// packets, packet i filled with byte i+1.
func writeWaveLAS(t *testing.T, dir string) (string, *point.PackedPoints) {
	t.Helper()

	const w = testPacketSize
	path := filepath.Join(dir, "scan.las")

	hdr := testHeader(t, 2, 4, false)
	hdr.GlobalEncoding.SetWaveformExternal(true)

	pf, err := format.New(4, 0)
	require.NoError(t, err)
	pts := point.Zeroed(pf, 4)
	for i, off := range []uint64{0, 2 * w, 3 * w, 0} {
		require.NoError(t, pts.SetWavePacketDescriptorIndex(i, 1))
		require.NoError(t, pts.SetWavePacketOffset(i, off))
		require.NoError(t, pts.SetWavePacketSize(i, w))
	}

	lw, err := Create(path, hdr, []vlr.VLR{testDescriptorVLR(1)})
	require.NoError(t, err)
	require.NoError(t, lw.WritePoints(pts))
	require.NoError(t, lw.Close())

	wdp := make([]byte, 4*w)
	for i := 0; i < 4; i++ {
		for j := 0; j < w; j++ {
			wdp[i*w+j] = byte(i + 1)
		}
	}
	require.NoError(t, os.WriteFile(WaveformPath(path), wdp, 0o644))

	return path, pts
}

func TestFullWaveformEagerRead(t *testing.T) {
	path, _ := writeWaveLAS(t, t.TempDir())

	r, err := OpenFullWaveform(path, EagerWaveforms)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, testPacketSize, r.Registry().PacketSize())

	batch, err := r.ReadPointsWaveforms(-1)
	require.NoError(t, err)
	require.True(t, batch.Loaded(), "eager mode materializes on read")

	rec, indexes, err := batch.Waveforms()
	require.NoError(t, err)
	require.Equal(t, 3, rec.Len(), "duplicate offsets materialize once")
	require.Equal(t, []int{0, 1, 2, 0}, indexes)

	// Packet content follows ascending original offset order.
	require.Equal(t, bytes.Repeat([]byte{1}, testPacketSize), rec.Packet(0))
	require.Equal(t, bytes.Repeat([]byte{3}, testPacketSize), rec.Packet(1))
	require.Equal(t, bytes.Repeat([]byte{4}, testPacketSize), rec.Packet(2))

	// Past the end: empty batch, no error.
	batch, err = r.ReadPointsWaveforms(5)
	require.NoError(t, err)
	require.Zero(t, batch.Points.Len())
}

func TestFullWaveformLazyRead(t *testing.T) {
	path, _ := writeWaveLAS(t, t.TempDir())

	r, err := OpenFullWaveform(path, LazyWaveforms)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadPointsWaveforms(2)
	require.NoError(t, err)
	require.False(t, batch.Loaded(), "lazy mode defers materialization")

	rec, indexes, err := batch.Waveforms()
	require.NoError(t, err)
	require.True(t, batch.Loaded())
	require.Equal(t, []int{0, 1}, indexes)
	require.Equal(t, 2, rec.Len())

	// A second access returns the cached record.
	again, _, err := batch.Waveforms()
	require.NoError(t, err)
	require.Same(t, rec, again)
}

func TestOpenFullWaveformValidation(t *testing.T) {
	t.Run("format without waveform fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain.las")
		hdr := testHeader(t, 2, 1, false)
		hdr.GlobalEncoding.SetWaveformExternal(true)
		w, err := Create(path, hdr, []vlr.VLR{testDescriptorVLR(1)})
		require.NoError(t, err)
		require.NoError(t, w.Close())

		_, err = OpenFullWaveform(path, EagerWaveforms)
		require.ErrorIs(t, err, errs.ErrNoWavePacketField)
	})

	t.Run("inline waveform storage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "inline.las")
		hdr := testHeader(t, 2, 4, false)
		hdr.GlobalEncoding.SetWaveformInternal(true)
		w, err := Create(path, hdr, []vlr.VLR{testDescriptorVLR(1)})
		require.NoError(t, err)
		require.NoError(t, w.Close())

		_, err = OpenFullWaveform(path, EagerWaveforms)
		require.ErrorIs(t, err, errs.ErrWaveformNotExternal)
	})

	t.Run("no descriptors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bare.las")
		hdr := testHeader(t, 2, 4, false)
		hdr.GlobalEncoding.SetWaveformExternal(true)
		w, err := Create(path, hdr, nil)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		_, err = OpenFullWaveform(path, EagerWaveforms)
		require.ErrorIs(t, err, errs.ErrNoWaveformDescriptors)
	})
}

func TestFullWaveformDataWrite(t *testing.T) {
	const w = testPacketSize
	dir := t.TempDir()
	path, _ := writeWaveLAS(t, dir)

	r, err := OpenFullWaveform(path, LazyWaveforms)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadPointsWaveforms(-1)
	require.NoError(t, err)

	rec, indexes, err := batch.Waveforms()
	require.NoError(t, err)

	outHdr := testHeader(t, 4, 4, false)
	var out bytes.Buffer
	data := MaterializedWaveformData(rec, indexes)
	err = data.Write(&out, batch.Points, outHdr, r.Registry(), DefaultWaveformChunk(w))
	require.NoError(t, err)

	// Three distinct packets, tightly packed, no placeholder.
	require.Len(t, out.Bytes(), 3*w)
	require.Equal(t, rec.Bytes(), out.Bytes())

	// Point offsets rewritten to deduplicated positions.
	offs, err := batch.Points.WavePacketOffsets()
	require.NoError(t, err)
	require.Equal(t, []uint64{0, w, 2 * w, 0}, offs)

	// Header patched for external storage.
	require.True(t, outHdr.GlobalEncoding.HasWaveformExternal())
	require.False(t, outHdr.GlobalEncoding.HasWaveformInternal())
	require.Zero(t, outHdr.StartOfWaveformData)
}

func TestFullWaveformDataWriteLazy(t *testing.T) {
	const w = testPacketSize
	dir := t.TempDir()
	path, pts := writeWaveLAS(t, dir)

	wdp, err := os.Open(WaveformPath(path))
	require.NoError(t, err)
	reader, err := waveform.NewReader(wdp, w)
	require.NoError(t, err)
	defer reader.Close()

	lr, err := Open(path)
	require.NoError(t, err)
	defer lr.Close()
	registry, err := waveform.RegistryFromVLRs(lr.VLRs())
	require.NoError(t, err)

	hdr := testHeader(t, 3, 4, false)
	hdr.StartOfWaveformData = 999

	var out bytes.Buffer
	err = LazyWaveformData(reader).Write(&out, pts, hdr, registry, 2)
	require.NoError(t, err)
	require.Len(t, out.Bytes(), 3*w)
	require.Zero(t, hdr.StartOfWaveformData, "legacy waveform offset zeroed for 1.3+")

	offs, err := pts.WavePacketOffsets()
	require.NoError(t, err)
	require.Equal(t, []uint64{0, w, 2 * w, 0}, offs)
}

func TestFullWaveformDataLazySizeMismatch(t *testing.T) {
	const w = testPacketSize
	path, pts := writeWaveLAS(t, t.TempDir())

	wdp, err := os.Open(WaveformPath(path))
	require.NoError(t, err)
	reader, err := waveform.NewReader(wdp, w)
	require.NoError(t, err)
	defer reader.Close()

	lr, err := Open(path)
	require.NoError(t, err)
	defer lr.Close()
	registry, err := waveform.RegistryFromVLRs(lr.VLRs())
	require.NoError(t, err)

	// Point 1 claims a packet size the descriptors cannot produce.
	require.NoError(t, pts.SetWavePacketSize(1, 9))

	hdr := testHeader(t, 4, 4, false)
	var out bytes.Buffer
	err = LazyWaveformData(reader).Write(&out, pts, hdr, registry, 2)
	require.ErrorIs(t, err, errs.ErrInconsistentWaveformSizes)
	require.Zero(t, out.Len(), "mismatch detected before any byte is written")
}

func TestFullWaveformUnresolvedDescriptor(t *testing.T) {
	const w = testPacketSize
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.las")

	hdr := testHeader(t, 2, 4, false)
	hdr.GlobalEncoding.SetWaveformExternal(true)

	pf, err := format.New(4, 0)
	require.NoError(t, err)
	pts := point.Zeroed(pf, 3)
	// Descriptor index 7 has no registered VLR.
	for i, desc := range []uint8{1, 7, 1} {
		require.NoError(t, pts.SetWavePacketDescriptorIndex(i, desc))
		require.NoError(t, pts.SetWavePacketOffset(i, uint64(i)*w))
		require.NoError(t, pts.SetWavePacketSize(i, w))
	}

	lw, err := Create(path, hdr, []vlr.VLR{testDescriptorVLR(1)})
	require.NoError(t, err)
	require.NoError(t, lw.WritePoints(pts))
	require.NoError(t, lw.Close())

	wdp := make([]byte, 3*w)
	for i := 0; i < 3; i++ {
		for j := 0; j < w; j++ {
			wdp[i*w+j] = byte(i + 1)
		}
	}
	require.NoError(t, os.WriteFile(WaveformPath(path), wdp, 0o644))

	r, err := OpenFullWaveform(path, EagerWaveforms)
	require.NoError(t, err)
	defer r.Close()

	batch, err := r.ReadPointsWaveforms(-1)
	require.NoError(t, err)
	rec, indexes, err := batch.Waveforms()
	require.NoError(t, err)

	// Two resolvable packets plus the shared zero packet at the end, so
	// every per-point index is addressable.
	require.Equal(t, 3, rec.Len())
	require.Equal(t, []int{0, 2, 1}, indexes)
	require.Equal(t, bytes.Repeat([]byte{1}, w), rec.Packet(0))
	require.Equal(t, bytes.Repeat([]byte{3}, w), rec.Packet(1))
	require.Equal(t, make([]byte, w), rec.Packet(indexes[1]))

	// Writing the materialized record keeps the single zero packet and
	// points the unresolved point at it.
	outHdr := testHeader(t, 4, 4, false)
	var out bytes.Buffer
	err = MaterializedWaveformData(rec, indexes).Write(&out, batch.Points, outHdr, r.Registry(), DefaultWaveformChunk(w))
	require.NoError(t, err)
	require.Len(t, out.Bytes(), 3*w)

	offs, err := batch.Points.WavePacketOffsets()
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 2 * w, w}, offs)
}

func TestFullWaveformDataLazyWithoutReader(t *testing.T) {
	path, pts := writeWaveLAS(t, t.TempDir())

	lr, err := Open(path)
	require.NoError(t, err)
	defer lr.Close()
	registry, err := waveform.RegistryFromVLRs(lr.VLRs())
	require.NoError(t, err)

	hdr := testHeader(t, 4, 4, false)
	var out bytes.Buffer
	err = LazyWaveformData(nil).Write(&out, pts, hdr, registry, 1)
	require.ErrorIs(t, err, errs.ErrNoWaveformReader)
}
