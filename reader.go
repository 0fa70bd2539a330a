package laspack

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/arloliu/laspack/format"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/laz"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

// Reader streams point records from a LAS file, decompressing through a
// codec backend when the file is compressed.
//
// A reader is single-caller; serialize concurrent use externally.
type Reader struct {
	hdr    *header.Header
	vlrs   []vlr.VLR
	pf     format.PointFormat
	stream laz.PointReader
	closer io.Closer

	position uint64
	closed   bool
}

// Open opens a LAS file for reading.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f

	return r, nil
}

// NewReader opens a LAS stream from an in-memory or already-open source.
// The source is not closed on Close unless the reader opened it itself.
func NewReader(src io.ReadSeeker, opts ...Option) (*Reader, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind source: %w", err)
	}
	hdr, err := header.Read(src)
	if err != nil {
		return nil, err
	}
	vlrs, err := vlr.Read(src, int(hdr.VLRCount))
	if err != nil {
		return nil, err
	}
	pf, err := hdr.PointFormat()
	if err != nil {
		return nil, err
	}

	var stream laz.PointReader
	if hdr.IsCompressed() {
		backend, err := laz.Select(cfg.backends)
		if err != nil {
			return nil, err
		}
		stream, err = backend.CreateReader(src, hdr, vlrs, cfg.selection)
		if err != nil {
			return nil, err
		}
	} else {
		stream, err = newRawPointReader(src, hdr)
		if err != nil {
			return nil, err
		}
	}

	return &Reader{hdr: hdr, vlrs: vlrs, pf: pf, stream: stream}, nil
}

// Header returns the parsed file header.
func (r *Reader) Header() *header.Header {
	return r.hdr
}

// VLRs returns the parsed variable length records.
func (r *Reader) VLRs() []vlr.VLR {
	return r.vlrs
}

// PointFormat returns the file's point format.
func (r *Reader) PointFormat() format.PointFormat {
	return r.pf
}

// PointCount returns the total number of point records in the file.
func (r *Reader) PointCount() uint64 {
	return r.hdr.PointCount
}

// remaining returns the unread point count at the current position.
func (r *Reader) remaining() uint64 {
	if r.position >= r.hdr.PointCount {
		return 0
	}

	return r.hdr.PointCount - r.position
}

// ReadPoints reads up to n point records from the current position. A
// negative n reads all remaining points; n past the remaining count is
// clamped. At end of file it returns an empty batch, not an error. A short
// read against the header's count is logged, not raised.
func (r *Reader) ReadPoints(n int) (*point.PackedPoints, error) {
	remaining := r.remaining()
	if n < 0 || uint64(n) > remaining {
		n = int(remaining)
	}
	if n == 0 {
		return point.Empty(r.pf), nil
	}

	buf, err := r.stream.ReadNPoints(n)
	if err != nil {
		return nil, err
	}
	got := len(buf) / r.pf.Size()
	if got < n {
		slog.Warn("short point read",
			"requested", n, "read", got, "position", r.position)
	}
	r.position += uint64(got)

	return point.NewPackedPoints(buf, r.pf)
}

// Seek positions the reader at the zero-based point index.
func (r *Reader) Seek(pointIndex uint64) error {
	if err := r.stream.Seek(pointIndex); err != nil {
		return err
	}
	r.position = pointIndex

	return nil
}

// EVLRs reads the file's extended variable length records. The point
// stream is repositioned afterwards, so interleaving with ReadPoints is
// safe.
func (r *Reader) EVLRs() ([]vlr.EVLR, error) {
	if r.hdr.EVLRCount == 0 {
		return nil, nil
	}
	src := r.stream.Source()
	if _, err := src.Seek(int64(r.hdr.StartOfFirstEVLR), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek evlr section: %w", err)
	}

	evlrs, err := vlr.ReadEVLRs(src, int(r.hdr.EVLRCount))
	if err != nil {
		return nil, err
	}
	// Reading EVLRs moved the shared cursor; put the stream back.
	if err := r.stream.Seek(r.position); err != nil {
		return nil, err
	}

	return evlrs, nil
}

// Close releases the codec state and the file handle when Open created
// one. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.stream.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// rawPointReader streams uncompressed point records straight from the
// file region after the VLR section.
type rawPointReader struct {
	src       io.ReadSeeker
	dataStart int64
	pointSize int
	closed    bool
}

func newRawPointReader(src io.ReadSeeker, hdr *header.Header) (*rawPointReader, error) {
	r := &rawPointReader{
		src:       src,
		dataStart: int64(hdr.OffsetToPointData),
		pointSize: int(hdr.PointRecordLength),
	}
	if _, err := src.Seek(r.dataStart, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek point data: %w", err)
	}

	return r, nil
}

func (r *rawPointReader) Source() io.ReadSeeker {
	return r.src
}

func (r *rawPointReader) ReadNPoints(n int) ([]byte, error) {
	buf := make([]byte, n*r.pointSize)
	read, err := io.ReadFull(r.src, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read points: %w", err)
	}

	return buf[:(read/r.pointSize)*r.pointSize], nil
}

func (r *rawPointReader) Seek(pointIndex uint64) error {
	offset := r.dataStart + int64(pointIndex)*int64(r.pointSize)
	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek point %d: %w", pointIndex, err)
	}

	return nil
}

func (r *rawPointReader) Close() error {
	r.closed = true

	return nil
}

var _ laz.PointReader = (*rawPointReader)(nil)
