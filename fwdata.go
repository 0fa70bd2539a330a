package laspack

import (
	"fmt"
	"io"
	"os"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/waveform"
)

// defaultWaveformChunkBytes bounds the waveform sample memory held per
// write step when the caller does not choose a chunk size.
const defaultWaveformChunkBytes = 64 << 20

// DefaultWaveformChunk returns the default number of packets written per
// step for a packet size.
func DefaultWaveformChunk(packetSize int) int {
	if packetSize <= 0 {
		return 1
	}

	return max(1, defaultWaveformChunkBytes/packetSize)
}

// FullWaveformData is the sample data of a point batch headed for a
// waveform file, either already materialized or deferred to a live source
// reader until write time.
type FullWaveformData struct {
	record  *waveform.Record
	indexes []int
	reader  *waveform.Reader
}

// MaterializedWaveformData wraps an in-memory record and its per-point
// indexes, as produced by PointsWaveforms.Waveforms.
func MaterializedWaveformData(record *waveform.Record, indexes []int) *FullWaveformData {
	return &FullWaveformData{record: record, indexes: indexes}
}

// LazyWaveformData defers sample reads to a live waveform source at write
// time. Writing without a reader fails with a resource error.
func LazyWaveformData(reader *waveform.Reader) *FullWaveformData {
	return &FullWaveformData{reader: reader}
}

// Write emits the deduplicated waveform file for a point batch and
// rewrites each point's packet offset and size to the new tightly packed
// layout. Every resolvable point's stored packet size must match the
// descriptor-implied size; any variance is a hard error before a byte is
// written. pointsPerChunk bounds per-step memory and must be positive;
// pass DefaultWaveformChunk when in doubt.
//
// The header is patched for external waveform storage: the external flag
// is forced on, the internal flag off, and for file versions 1.3 and later
// the legacy in-header waveform offset is zeroed. Zero points produce an
// empty waveform file; a batch with no resolvable descriptors produces
// exactly one placeholder packet with every offset zero.
func (d *FullWaveformData) Write(dst io.Writer, points *point.PackedPoints, hdr *header.Header, registry *waveform.Registry, pointsPerChunk int) error {
	descriptors, err := points.WavePacketDescriptorIndexes()
	if err != nil {
		return err
	}
	valid := registry.ValidMask(descriptors)
	packetSize := registry.PacketSize()

	var newOffsets []uint64
	if d.record != nil {
		// A materialized record already carries the placeholder packet for
		// unresolved points and its indexes address it, so no mask applies.
		newOffsets, err = waveform.WriteMaterialized(dst, d.record, d.indexes, nil, pointsPerChunk)
	} else {
		var offsets []uint64
		offsets, err = points.WavePacketOffsets()
		if err != nil {
			return err
		}
		var sizes []uint32
		sizes, err = points.WavePacketSizes()
		if err != nil {
			return err
		}
		for i, size := range sizes {
			if valid[i] && int(size) != packetSize {
				return fmt.Errorf("point %d references %d-byte packet, descriptors imply %d: %w",
					i, size, packetSize, errs.ErrInconsistentWaveformSizes)
			}
		}
		newOffsets, err = waveform.WriteDeduplicated(dst, offsets, valid, d.reader, packetSize, pointsPerChunk)
	}
	if err != nil {
		return err
	}

	for i, off := range newOffsets {
		if err := points.SetWavePacketOffset(i, off); err != nil {
			return err
		}
		if err := points.SetWavePacketSize(i, uint32(packetSize)); err != nil {
			return err
		}
	}

	hdr.GlobalEncoding.SetWaveformExternal(true)
	hdr.GlobalEncoding.SetWaveformInternal(false)
	if hdr.Version.Minor >= 3 {
		hdr.StartOfWaveformData = 0
	}

	return nil
}

// WriteWaveformFile creates the sibling waveform file for a LAS path and
// writes the batch's deduplicated samples into it. The file is created
// even for zero points.
func (d *FullWaveformData) WriteWaveformFile(lasPath string, points *point.PackedPoints, hdr *header.Header, registry *waveform.Registry, pointsPerChunk int) error {
	f, err := os.Create(WaveformPath(lasPath))
	if err != nil {
		return fmt.Errorf("create waveform data: %w", err)
	}

	werr := d.Write(f, points, hdr, registry, pointsPerChunk)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}

	return werr
}
