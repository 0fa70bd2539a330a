package laspack

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/waveform"
)

// WaveformMode selects when waveform samples are materialized.
type WaveformMode int

const (
	// EagerWaveforms materializes all referenced samples as each point
	// batch is read.
	EagerWaveforms WaveformMode = iota
	// LazyWaveforms defers materialization until the batch's waveforms
	// are first accessed, then caches them.
	LazyWaveforms
)

// FullWaveformReader joins the point stream with the auxiliary waveform
// file. The two are independently seekable; the reader interleaves their
// cursors and never assumes one implies the other.
type FullWaveformReader struct {
	points   *Reader
	waves    *waveform.Reader
	registry *waveform.Registry
	mode     WaveformMode
	closed   bool
}

// OpenFullWaveform opens a LAS file together with its sibling waveform
// data file.
//
// The point format must carry waveform fields, the file's global encoding
// must mark external waveform storage (inline storage is unsupported), and
// the file must declare at least one waveform packet descriptor.
func OpenFullWaveform(path string, mode WaveformMode, opts ...Option) (*FullWaveformReader, error) {
	points, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}

	registry, err := validateWaveformFile(points)
	if err != nil {
		points.Close()
		return nil, err
	}

	wdp, err := os.Open(WaveformPath(path))
	if err != nil {
		points.Close()
		return nil, fmt.Errorf("open waveform data: %w", err)
	}
	waves, err := waveform.NewReader(wdp, registry.PacketSize())
	if err != nil {
		points.Close()
		wdp.Close()
		return nil, err
	}

	return &FullWaveformReader{
		points:   points,
		waves:    waves,
		registry: registry,
		mode:     mode,
	}, nil
}

func validateWaveformFile(points *Reader) (*waveform.Registry, error) {
	if !points.PointFormat().HasWavePacket() {
		return nil, fmt.Errorf("point format %d: %w",
			points.PointFormat().ID, errs.ErrNoWavePacketField)
	}
	enc := points.Header().GlobalEncoding
	if enc.HasWaveformInternal() || !enc.HasWaveformExternal() {
		return nil, errs.ErrWaveformNotExternal
	}

	registry, err := waveform.RegistryFromVLRs(points.VLRs())
	if err != nil {
		return nil, err
	}
	if registry.Empty() {
		return nil, errs.ErrNoWaveformDescriptors
	}

	return registry, nil
}

// Registry returns the file's waveform descriptor registry.
func (r *FullWaveformReader) Registry() *waveform.Registry {
	return r.registry
}

// PointReader returns the underlying point stream.
func (r *FullWaveformReader) PointReader() *Reader {
	return r.points
}

// ReadPointsWaveforms reads up to n point records and binds their waveform
// references. A negative n reads all remaining points; n past the
// remaining count is clamped; reading past the end yields an empty batch.
// In eager mode the samples are materialized before returning.
func (r *FullWaveformReader) ReadPointsWaveforms(n int) (*PointsWaveforms, error) {
	batch, err := r.points.ReadPoints(n)
	if err != nil {
		return nil, err
	}

	pw := &PointsWaveforms{
		Points:   batch,
		reader:   r.waves,
		registry: r.registry,
	}
	if r.mode == EagerWaveforms {
		if err := pw.ensureLoaded(); err != nil {
			return nil, err
		}
	}

	return pw, nil
}

// Close releases the point stream and the waveform file handle exactly
// once each.
func (r *FullWaveformReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.points.Close()
	if werr := r.waves.Close(); err == nil {
		err = werr
	}

	return err
}

// PointsWaveforms is a point batch with lazily bound waveform samples.
// The materialized record caches after the first access; later accesses
// are no-ops.
type PointsWaveforms struct {
	Points *point.PackedPoints

	reader   *waveform.Reader
	registry *waveform.Registry

	loaded  bool
	record  *waveform.Record
	indexes []int
}

// Waveforms materializes (on first call) and returns the batch's distinct
// waveform packets plus, per point, the index of its packet in the record.
// Points without a resolvable descriptor share one all-zero packet
// appended after the real ones, so every index is addressable.
func (pw *PointsWaveforms) Waveforms() (*waveform.Record, []int, error) {
	if err := pw.ensureLoaded(); err != nil {
		return nil, nil, err
	}

	return pw.record, pw.indexes, nil
}

// Loaded reports whether the samples are materialized.
func (pw *PointsWaveforms) Loaded() bool {
	return pw.loaded
}

func (pw *PointsWaveforms) ensureLoaded() error {
	if pw.loaded {
		return nil
	}

	offsets, err := pw.Points.WavePacketOffsets()
	if err != nil {
		return err
	}
	sizes, err := pw.Points.WavePacketSizes()
	if err != nil {
		return err
	}
	descriptors, err := pw.Points.WavePacketDescriptorIndexes()
	if err != nil {
		return err
	}

	valid := pw.registry.ValidMask(descriptors)
	validOffsets := make([]uint64, 0, len(offsets))
	validSizes := make([]uint32, 0, len(sizes))
	invalid := 0
	for i := range offsets {
		if !valid[i] {
			invalid++
			continue
		}
		validOffsets = append(validOffsets, offsets[i])
		validSizes = append(validSizes, sizes[i])
	}
	if invalid > 0 {
		slog.Warn("points without resolvable waveform descriptor",
			"count", invalid, "total", len(offsets))
	}

	record, ranks, err := waveform.Materialize(pw.reader, validOffsets, validSizes, pw.registry.SampleSpacing())
	if err != nil {
		return err
	}
	if invalid > 0 {
		// Unresolvable points all share one zero packet after the real ones.
		record = record.WithPlaceholder()
	}

	indexes := make([]int, len(offsets))
	next := 0
	for i := range offsets {
		if !valid[i] {
			indexes[i] = record.Len() - 1
			continue
		}
		indexes[i] = ranks[next]
		next++
	}

	pw.record = record
	pw.indexes = indexes
	pw.loaded = true

	return nil
}
