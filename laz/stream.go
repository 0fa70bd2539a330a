package laz

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/arloliu/laspack/compress"
	"github.com/arloliu/laspack/endian"
	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/internal/pool"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

// Point data region layout: an 8-byte absolute offset to the chunk table,
// the compressed chunks, then the table itself. The table records one entry
// per chunk: compressed length, point count, and the xxhash64 of the raw
// chunk bytes.
const (
	tableOffsetSize = 8
	tableEntrySize  = 16
)

type chunkEntry struct {
	compressedLen uint32
	pointCount    uint32
	checksum      uint64
}

func writeChunkTable(w io.Writer, entries []chunkEntry) error {
	engine := endian.GetLittleEndianEngine()
	buf := make([]byte, 4+len(entries)*tableEntrySize)
	engine.PutUint32(buf[0:4], uint32(len(entries)))
	for i, e := range entries {
		base := 4 + i*tableEntrySize
		engine.PutUint32(buf[base:base+4], e.compressedLen)
		engine.PutUint32(buf[base+4:base+8], e.pointCount)
		engine.PutUint64(buf[base+8:base+16], e.checksum)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write chunk table: %w", err)
	}

	return nil
}

func readChunkTable(r io.Reader) ([]chunkEntry, error) {
	engine := endian.GetLittleEndianEngine()
	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("read chunk table: %w", err)
	}
	count := engine.Uint32(head)

	buf := make([]byte, int(count)*tableEntrySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read chunk table entries: %w", err)
	}

	entries := make([]chunkEntry, count)
	for i := range entries {
		base := i * tableEntrySize
		entries[i] = chunkEntry{
			compressedLen: engine.Uint32(buf[base : base+4]),
			pointCount:    engine.Uint32(buf[base+4 : base+8]),
			checksum:      engine.Uint64(buf[base+8 : base+16]),
		}
	}

	return entries, nil
}

// WriteHeaderAndVLRs sets the header's VLR count and point data offset to
// match the record list, then serializes both. This is the default initial
// emission shared by every writer variant.
func WriteHeaderAndVLRs(w io.Writer, hdr *header.Header, vlrs []vlr.VLR) error {
	hdr.VLRCount = uint32(len(vlrs))
	hdr.OffsetToPointData = uint32(hdr.Size() + vlr.SerializedSize(vlrs))
	if err := hdr.Write(w); err != nil {
		return err
	}

	return vlr.Write(w, vlrs)
}

// selectionFields maps skippable groups to their record field ranges.
var selectionFields = map[DecompressionSelection]format.Field{
	SelectZ:              format.FieldZ,
	SelectClassification: format.FieldClassification,
	SelectFlags:          format.FieldFlags,
	SelectIntensity:      format.FieldIntensity,
	SelectScanAngle:      format.FieldScanAngle,
	SelectUserData:       format.FieldUserData,
	SelectPointSourceID:  format.FieldPointSourceID,
	SelectGPSTime:        format.FieldGPSTime,
	SelectRGB:            format.FieldRGB,
	SelectNIR:            format.FieldNIR,
	SelectWavePacket:     format.FieldWavePacket,
	SelectAllExtraBytes:  format.FieldExtraBytes,
}

// skippedRanges resolves a selection to the record byte ranges the reader
// blanks out. Empty for legacy formats, where selection is ignored.
func skippedRanges(s DecompressionSelection, f format.PointFormat, fileVersion header.Version) [][2]int {
	if fileVersion.Minor < 4 || !f.IsExtended() {
		return nil
	}

	var ranges [][2]int
	for g, field := range selectionFields {
		if s.IsSet(g) {
			continue
		}
		if start, end, ok := f.FieldRange(field); ok {
			ranges = append(ranges, [2]int{start, end})
		}
	}

	return ranges
}

// chunkStreamReader decodes the chunked point stream. Both native variants
// and the external variant drive it, differing only in the codec.
type chunkStreamReader struct {
	src       io.ReadSeeker
	codec     compress.Codec
	pointSize int

	entries      []chunkEntry
	chunkOffsets []int64  // absolute file offset of each chunk
	cumulative   []uint64 // points before each chunk

	nextChunk  int
	current    []byte
	posInChunk int

	zeroRanges [][2]int
	closed     bool
}

func newChunkStreamReader(src io.ReadSeeker, codec compress.Codec, hdr *header.Header, rec vlr.CodecRecord, zero [][2]int) (*chunkStreamReader, error) {
	if int(rec.PointSize) != int(hdr.PointRecordLength) {
		return nil, fmt.Errorf("codec record point size %d, header record length %d: %w",
			rec.PointSize, hdr.PointRecordLength, errs.ErrHeaderMismatch)
	}

	if _, err := src.Seek(int64(hdr.OffsetToPointData), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek point data: %w", err)
	}

	engine := endian.GetLittleEndianEngine()
	offBuf := make([]byte, tableOffsetSize)
	if _, err := io.ReadFull(src, offBuf); err != nil {
		return nil, fmt.Errorf("read chunk table offset: %w", err)
	}
	tableOffset := int64(engine.Uint64(offBuf))
	if tableOffset <= int64(hdr.OffsetToPointData) {
		return nil, fmt.Errorf("chunk table offset %d: %w", tableOffset, errs.ErrInvalidChunkTable)
	}

	if _, err := src.Seek(tableOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek chunk table: %w", err)
	}
	entries, err := readChunkTable(src)
	if err != nil {
		return nil, err
	}

	r := &chunkStreamReader{
		src:        src,
		codec:      codec,
		pointSize:  int(rec.PointSize),
		entries:    entries,
		zeroRanges: zero,
	}
	r.chunkOffsets = make([]int64, len(entries))
	r.cumulative = make([]uint64, len(entries)+1)
	pos := int64(hdr.OffsetToPointData) + tableOffsetSize
	for i, e := range entries {
		r.chunkOffsets[i] = pos
		pos += int64(e.compressedLen)
		r.cumulative[i+1] = r.cumulative[i] + uint64(e.pointCount)
	}
	if pos > tableOffset {
		return nil, fmt.Errorf("chunks overrun table at %d: %w", tableOffset, errs.ErrInvalidChunkTable)
	}

	return r, nil
}

func (r *chunkStreamReader) Source() io.ReadSeeker {
	return r.src
}

// loadChunk decompresses chunk k into the current buffer, verifying its
// checksum and applying the selection blanking.
func (r *chunkStreamReader) loadChunk(k int) error {
	e := r.entries[k]
	if _, err := r.src.Seek(r.chunkOffsets[k], io.SeekStart); err != nil {
		return fmt.Errorf("seek chunk %d: %w", k, err)
	}

	bb := pool.GetChunkBuffer()
	defer pool.PutChunkBuffer(bb)
	bb.SetLength(int(e.compressedLen))
	if _, err := io.ReadFull(r.src, bb.Bytes()); err != nil {
		return fmt.Errorf("read chunk %d: %w", k, err)
	}

	raw, err := r.codec.Decompress(bb.Bytes())
	if err != nil {
		return fmt.Errorf("decompress chunk %d: %w", k, err)
	}
	// The no-op codec passes the pooled buffer through; detach before the
	// buffer goes back to the pool.
	if len(raw) > 0 && len(bb.B) > 0 && &raw[0] == &bb.B[0] {
		raw = append([]byte(nil), raw...)
	}
	if len(raw) != int(e.pointCount)*r.pointSize {
		return fmt.Errorf("chunk %d decoded to %d bytes, expected %d points: %w",
			k, len(raw), e.pointCount, errs.ErrInvalidChunkTable)
	}
	if xxhash.Sum64(raw) != e.checksum {
		return fmt.Errorf("chunk %d: %w", k, errs.ErrChunkChecksumMismatch)
	}

	for i := 0; i < int(e.pointCount); i++ {
		rec := raw[i*r.pointSize : (i+1)*r.pointSize]
		for _, zr := range r.zeroRanges {
			clear(rec[zr[0]:zr[1]])
		}
	}

	r.current = raw
	r.posInChunk = 0
	r.nextChunk = k + 1

	return nil
}

func (r *chunkStreamReader) ReadNPoints(n int) ([]byte, error) {
	out := make([]byte, 0, n*r.pointSize)
	for n > 0 {
		if r.posInChunk >= len(r.current) {
			if r.nextChunk >= len(r.entries) {
				break
			}
			if err := r.loadChunk(r.nextChunk); err != nil {
				return nil, err
			}
			if len(r.current) == 0 {
				continue
			}
		}
		avail := (len(r.current) - r.posInChunk) / r.pointSize
		take := min(avail, n)
		out = append(out, r.current[r.posInChunk:r.posInChunk+take*r.pointSize]...)
		r.posInChunk += take * r.pointSize
		n -= take
	}

	return out, nil
}

func (r *chunkStreamReader) Seek(pointIndex uint64) error {
	total := r.cumulative[len(r.cumulative)-1]
	if pointIndex >= total {
		// Position at end of stream; subsequent reads return empty.
		r.current = nil
		r.posInChunk = 0
		r.nextChunk = len(r.entries)
		return nil
	}

	k := 0
	for r.cumulative[k+1] <= pointIndex {
		k++
	}
	if err := r.loadChunk(k); err != nil {
		return err
	}
	r.posInChunk = int(pointIndex-r.cumulative[k]) * r.pointSize

	return nil
}

func (r *chunkStreamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.current = nil

	return nil
}

// chunkStreamWriter produces the chunked point stream. The appender reuses
// it after reconstructing the trailing partial chunk.
type chunkStreamWriter struct {
	dst       io.WriteSeeker
	codec     compress.Codec
	rec       vlr.CodecRecord
	pointSize int

	pending        []byte
	entries        []chunkEntry
	tableOffsetPos int64
	headerWritten  bool
	done           bool
}

func newChunkStreamWriter(dst io.WriteSeeker, codec compress.Codec, rec vlr.CodecRecord) *chunkStreamWriter {
	return &chunkStreamWriter{
		dst:       dst,
		codec:     codec,
		rec:       rec,
		pointSize: int(rec.PointSize),
	}
}

func (w *chunkStreamWriter) Destination() io.WriteSeeker {
	return w.dst
}

// beginPointData writes the chunk table offset placeholder. The destination
// must be positioned at the start of the point data region.
func (w *chunkStreamWriter) beginPointData() error {
	pos, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("locate point data start: %w", err)
	}
	w.tableOffsetPos = pos

	placeholder := make([]byte, tableOffsetSize)
	if _, err := w.dst.Write(placeholder); err != nil {
		return fmt.Errorf("write chunk table offset placeholder: %w", err)
	}
	w.headerWritten = true

	return nil
}

func (w *chunkStreamWriter) WriteInitialHeaderAndVLRs(hdr *header.Header, vlrs []vlr.VLR) error {
	vlrs = append(vlrs, vlr.NewCodecVLR(w.rec))
	if err := WriteHeaderAndVLRs(w.dst, hdr, vlrs); err != nil {
		return err
	}

	return w.beginPointData()
}

func (w *chunkStreamWriter) WritePoints(points *point.PackedPoints) error {
	if !w.headerWritten {
		return fmt.Errorf("writing points before header: %w", errs.ErrInvalidChunkTable)
	}
	if points.Format().Size() != w.pointSize {
		return fmt.Errorf("point record size %d, codec record %d: %w",
			points.Format().Size(), w.pointSize, errs.ErrPointSizeMismatch)
	}

	w.pending = append(w.pending, points.Bytes()...)
	chunkBytes := int(w.rec.ChunkSize) * w.pointSize
	for len(w.pending) >= chunkBytes {
		if err := w.flushChunk(w.pending[:chunkBytes]); err != nil {
			return err
		}
		w.pending = w.pending[chunkBytes:]
	}

	return nil
}

func (w *chunkStreamWriter) flushChunk(raw []byte) error {
	compressed, err := w.codec.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress chunk %d: %w", len(w.entries), err)
	}
	if _, err := w.dst.Write(compressed); err != nil {
		return fmt.Errorf("write chunk %d: %w", len(w.entries), err)
	}
	w.entries = append(w.entries, chunkEntry{
		compressedLen: uint32(len(compressed)),
		pointCount:    uint32(len(raw) / w.pointSize),
		checksum:      xxhash.Sum64(raw),
	})

	return nil
}

func (w *chunkStreamWriter) Done() error {
	if w.done {
		return nil
	}
	if len(w.pending) > 0 {
		if err := w.flushChunk(w.pending); err != nil {
			return err
		}
		w.pending = nil
	}

	tablePos, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("locate chunk table: %w", err)
	}
	if err := writeChunkTable(w.dst, w.entries); err != nil {
		return err
	}
	endPos, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("locate stream end: %w", err)
	}

	if _, err := w.dst.Seek(w.tableOffsetPos, io.SeekStart); err != nil {
		return fmt.Errorf("seek chunk table offset: %w", err)
	}
	offBuf := make([]byte, tableOffsetSize)
	endian.GetLittleEndianEngine().PutUint64(offBuf, uint64(tablePos))
	if _, err := w.dst.Write(offBuf); err != nil {
		return fmt.Errorf("patch chunk table offset: %w", err)
	}
	if _, err := w.dst.Seek(endPos, io.SeekStart); err != nil {
		return fmt.Errorf("seek stream end: %w", err)
	}
	w.done = true

	return nil
}

func (w *chunkStreamWriter) WriteUpdatedHeader(hdr *header.Header) error {
	if _, err := w.dst.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	if err := hdr.Write(w.dst); err != nil {
		return err
	}

	return nil
}
