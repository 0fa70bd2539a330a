package waveform

import (
	"fmt"
	"io"
	"sort"

	"github.com/arloliu/laspack/errs"
)

// run is a maximal range of adjacent packet indexes, inclusive on both
// ends. One run costs one seek and one sequential read.
type run struct {
	first uint64
	last  uint64
}

func (r run) count() int {
	return int(r.last-r.first) + 1
}

// coalesceRuns folds sorted distinct packet indexes into maximal adjacent
// runs. An empty input coalesces to no runs.
func coalesceRuns(sorted []uint64) []run {
	if len(sorted) == 0 {
		return nil
	}

	runs := []run{{first: sorted[0], last: sorted[0]}}
	for _, idx := range sorted[1:] {
		if last := &runs[len(runs)-1]; idx == last.last+1 {
			last.last = idx
			continue
		}
		runs = append(runs, run{first: idx, last: idx})
	}

	return runs
}

// dedupOffsets reduces per-point offsets to their sorted distinct values
// and maps every point to the rank of its offset. Points where valid is
// false are excluded and mapped to -1. A nil mask means all points are
// valid.
func dedupOffsets(offsets []uint64, valid []bool) (distinct []uint64, pointRank []int) {
	seen := make(map[uint64]struct{}, len(offsets))
	for i, off := range offsets {
		if valid != nil && !valid[i] {
			continue
		}
		if _, ok := seen[off]; !ok {
			seen[off] = struct{}{}
			distinct = append(distinct, off)
		}
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	rank := make(map[uint64]int, len(distinct))
	for i, off := range distinct {
		rank[off] = i
	}

	pointRank = make([]int, len(offsets))
	for i, off := range offsets {
		if valid != nil && !valid[i] {
			pointRank[i] = -1
			continue
		}
		pointRank[i] = rank[off]
	}

	return distinct, pointRank
}

// Record is the materialized array of distinct waveform packets referenced
// by a point batch. Packet i holds the samples of the i-th distinct offset
// in ascending offset order.
type Record struct {
	samples    []byte
	packetSize int
	spacing    uint32
}

// NewRecord wraps raw packet bytes as a record.
func NewRecord(samples []byte, packetSize int, spacing uint32) (*Record, error) {
	if packetSize <= 0 {
		return nil, fmt.Errorf("packet size %d: %w", packetSize, errInvalidPacketSize)
	}
	if len(samples)%packetSize != 0 {
		return nil, fmt.Errorf("%d sample bytes do not divide into %d-byte packets: %w",
			len(samples), packetSize, errs.ErrInconsistentWaveformSizes)
	}

	return &Record{samples: samples, packetSize: packetSize, spacing: spacing}, nil
}

// Len returns the number of packets.
func (r *Record) Len() int {
	return len(r.samples) / r.packetSize
}

// PacketSize returns the fixed packet byte size.
func (r *Record) PacketSize() int {
	return r.packetSize
}

// SampleSpacing returns the temporal spacing carried over from the
// descriptor registry.
func (r *Record) SampleSpacing() uint32 {
	return r.spacing
}

// Packet returns the raw samples of packet i. The slice aliases the
// record's buffer.
func (r *Record) Packet(i int) []byte {
	return r.samples[i*r.packetSize : (i+1)*r.packetSize]
}

// Bytes returns the whole packet buffer.
func (r *Record) Bytes() []byte {
	return r.samples
}

// WithPlaceholder returns a copy of the record with one all-zero packet
// appended after the real ones, for points whose descriptor does not
// resolve to any packet.
func (r *Record) WithPlaceholder() *Record {
	samples := make([]byte, len(r.samples)+r.packetSize)
	copy(samples, r.samples)

	return &Record{samples: samples, packetSize: r.packetSize, spacing: r.spacing}
}

// Materialize resolves a point batch's waveform references into a record
// of distinct packets plus, per point, a stable index into that record.
//
// Every referenced size must equal the reader's packet size; any variance
// is a hard error. Duplicate offsets materialize once: a batch with K
// distinct offsets yields exactly K packets regardless of point order or
// duplication.
func Materialize(reader *Reader, offsets []uint64, sizes []uint32, spacing uint32) (*Record, []int, error) {
	if len(sizes) != len(offsets) {
		return nil, nil, fmt.Errorf("%d offsets, %d sizes: %w",
			len(offsets), len(sizes), errs.ErrMaskLengthMismatch)
	}
	if reader == nil {
		return nil, nil, errs.ErrNoWaveformReader
	}

	packetSize := reader.PacketSize()
	for i, size := range sizes {
		if int(size) != packetSize {
			return nil, nil, fmt.Errorf("point %d references %d-byte packet, descriptors imply %d: %w",
				i, size, packetSize, errs.ErrInconsistentWaveformSizes)
		}
	}

	distinct, pointRank := dedupOffsets(offsets, nil)
	indexes := make([]uint64, len(distinct))
	for i, off := range distinct {
		indexes[i] = off / uint64(packetSize)
	}

	samples := make([]byte, 0, len(distinct)*packetSize)
	for _, rn := range coalesceRuns(indexes) {
		if err := reader.Seek(rn.first); err != nil {
			return nil, nil, err
		}
		chunk, err := reader.ReadPackets(rn.count())
		if err != nil {
			return nil, nil, err
		}
		if len(chunk) != rn.count()*packetSize {
			return nil, nil, fmt.Errorf("packets %d-%d: %w", rn.first, rn.last, io.ErrUnexpectedEOF)
		}
		samples = append(samples, chunk...)
	}

	rec := &Record{samples: samples, packetSize: packetSize, spacing: spacing}

	return rec, pointRank, nil
}

// WriteDeduplicated re-emits a point batch's waveform packets into dst in
// deduplicated, tightly packed form, pulling sample data from a live
// reader run by run. It returns the rewritten per-point byte offsets.
//
// valid marks the points whose descriptor index resolves; invalid points
// are excluded from dedup and share one all-zero placeholder packet
// appended after the real ones. A nil mask means all points are valid.
// pointsPerChunk bounds the packets held in memory per read and must be
// positive; it is validated before any byte is written.
//
// Zero points write nothing and return no offsets. An all-invalid batch
// writes exactly one placeholder packet, every offset zero.
func WriteDeduplicated(dst io.Writer, offsets []uint64, valid []bool, reader *Reader, packetSize int, pointsPerChunk int) ([]uint64, error) {
	if pointsPerChunk <= 0 {
		return nil, fmt.Errorf("chunk of %d points: %w", pointsPerChunk, errs.ErrNonPositiveChunkSize)
	}
	if packetSize <= 0 {
		return nil, fmt.Errorf("packet size %d: %w", packetSize, errInvalidPacketSize)
	}
	if valid != nil && len(valid) != len(offsets) {
		return nil, fmt.Errorf("%d mask entries for %d points: %w",
			len(valid), len(offsets), errs.ErrMaskLengthMismatch)
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	distinct, pointRank := dedupOffsets(offsets, valid)
	if len(distinct) > 0 {
		if reader == nil {
			return nil, errs.ErrNoWaveformReader
		}

		indexes := make([]uint64, len(distinct))
		for i, off := range distinct {
			indexes[i] = off / uint64(packetSize)
		}
		for _, rn := range coalesceRuns(indexes) {
			if err := copyRun(dst, reader, rn, packetSize, pointsPerChunk); err != nil {
				return nil, err
			}
		}
	}

	hasInvalid := false
	for _, rank := range pointRank {
		if rank < 0 {
			hasInvalid = true
			break
		}
	}
	if hasInvalid {
		if _, err := dst.Write(make([]byte, packetSize)); err != nil {
			return nil, fmt.Errorf("write placeholder packet: %w", err)
		}
	}

	newOffsets := make([]uint64, len(offsets))
	for i, rank := range pointRank {
		if rank < 0 {
			// Invalid points share the placeholder after the real packets.
			newOffsets[i] = uint64(len(distinct)) * uint64(packetSize)
			continue
		}
		newOffsets[i] = uint64(rank) * uint64(packetSize)
	}

	return newOffsets, nil
}

// copyRun streams one run from the reader to dst in bounded chunks.
func copyRun(dst io.Writer, reader *Reader, rn run, packetSize, pointsPerChunk int) error {
	if err := reader.Seek(rn.first); err != nil {
		return err
	}
	remaining := rn.count()
	for remaining > 0 {
		n := min(remaining, pointsPerChunk)
		chunk, err := reader.ReadPackets(n)
		if err != nil {
			return err
		}
		if len(chunk) != n*packetSize {
			return fmt.Errorf("packets %d-%d: %w", rn.first, rn.last, io.ErrUnexpectedEOF)
		}
		if _, err := dst.Write(chunk); err != nil {
			return fmt.Errorf("write waveform packets: %w", err)
		}
		remaining -= n
	}

	return nil
}

// WriteMaterialized re-emits an already materialized record into dst and
// returns the rewritten per-point byte offsets. indexes is the per-point
// record index from Materialize; valid follows the WriteDeduplicated
// contract.
func WriteMaterialized(dst io.Writer, rec *Record, indexes []int, valid []bool, pointsPerChunk int) ([]uint64, error) {
	if pointsPerChunk <= 0 {
		return nil, fmt.Errorf("chunk of %d points: %w", pointsPerChunk, errs.ErrNonPositiveChunkSize)
	}
	if valid != nil && len(valid) != len(indexes) {
		return nil, fmt.Errorf("%d mask entries for %d points: %w",
			len(valid), len(indexes), errs.ErrMaskLengthMismatch)
	}
	if len(indexes) == 0 {
		return nil, nil
	}

	packetSize := rec.PacketSize()
	chunkBytes := pointsPerChunk * packetSize
	buf := rec.Bytes()
	for len(buf) > 0 {
		n := min(len(buf), chunkBytes)
		if _, err := dst.Write(buf[:n]); err != nil {
			return nil, fmt.Errorf("write waveform packets: %w", err)
		}
		buf = buf[n:]
	}

	hasInvalid := false
	for i, idx := range indexes {
		if idx < 0 || (valid != nil && !valid[i]) {
			hasInvalid = true
			break
		}
	}
	if hasInvalid {
		if _, err := dst.Write(make([]byte, packetSize)); err != nil {
			return nil, fmt.Errorf("write placeholder packet: %w", err)
		}
	}

	newOffsets := make([]uint64, len(indexes))
	for i, idx := range indexes {
		if idx < 0 || (valid != nil && !valid[i]) {
			newOffsets[i] = uint64(rec.Len()) * uint64(packetSize)
			continue
		}
		newOffsets[i] = uint64(idx) * uint64(packetSize)
	}

	return newOffsets, nil
}
