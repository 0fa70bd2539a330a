package laspack

import (
	"fmt"
	"io"
	"os"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/laz"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

// Appender appends point records to an existing LAS file.
//
// The backend capability is checked before any codec state is built:
// opening a compressed file with an append-incapable backend fails fast.
// Appending relocates the EVLR section, which is re-emitted after the new
// point data on Close.
type Appender struct {
	hdr    *header.Header
	stream laz.PointAppender
	rw     io.ReadWriteSeeker
	closer io.Closer
	evlrs  []vlr.EVLR

	appended uint64
	closed   bool
}

// OpenAppender opens a LAS file for appending.
func OpenAppender(path string, opts ...Option) (*Appender, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	a, err := NewAppender(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f

	return a, nil
}

// NewAppender opens an appender over an already-open read-write source.
func NewAppender(rw io.ReadWriteSeeker, opts ...Option) (*Appender, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	if _, err := rw.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind source: %w", err)
	}
	hdr, err := header.Read(rw)
	if err != nil {
		return nil, err
	}
	vlrs, err := vlr.Read(rw, int(hdr.VLRCount))
	if err != nil {
		return nil, err
	}

	// Existing EVLRs are displaced by the appended data; keep them for
	// re-emission.
	var evlrs []vlr.EVLR
	if hdr.EVLRCount > 0 {
		if _, err := rw.Seek(int64(hdr.StartOfFirstEVLR), io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek evlr section: %w", err)
		}
		evlrs, err = vlr.ReadEVLRs(rw, int(hdr.EVLRCount))
		if err != nil {
			return nil, err
		}
	}

	var stream laz.PointAppender
	if hdr.IsCompressed() {
		backend, err := laz.Select(cfg.backends)
		if err != nil {
			return nil, err
		}
		if !backend.SupportsAppend() {
			return nil, fmt.Errorf("backend %s: %w", backend.Name(), errs.ErrAppendNotSupported)
		}
		stream, err = backend.CreateAppender(rw, hdr, vlrs)
		if err != nil {
			return nil, err
		}
	} else {
		ra, err := newRawAppender(rw, hdr)
		if err != nil {
			return nil, err
		}
		stream = ra
	}

	return &Appender{hdr: hdr, stream: stream, rw: rw, evlrs: evlrs}, nil
}

// Header returns the in-memory header.
func (a *Appender) Header() *header.Header {
	return a.hdr
}

// AppendPoints appends a batch of point records after the existing ones.
func (a *Appender) AppendPoints(points *point.PackedPoints) error {
	if err := a.stream.AppendPoints(points); err != nil {
		return err
	}
	a.appended += uint64(points.Len())

	return nil
}

// Close finalizes the stream, re-emits displaced EVLRs, patches the header
// counts and releases the file handle when OpenAppender opened one.
func (a *Appender) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	err := a.finish()
	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

func (a *Appender) finish() error {
	if err := a.stream.Done(); err != nil {
		return err
	}

	if len(a.evlrs) > 0 {
		pos, err := a.rw.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("locate evlr section: %w", err)
		}
		if err := vlr.WriteEVLRs(a.rw, a.evlrs); err != nil {
			return err
		}
		a.hdr.StartOfFirstEVLR = uint64(pos)
		a.hdr.EVLRCount = uint32(len(a.evlrs))
	}

	a.hdr.PointCount += a.appended
	if _, err := a.rw.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}

	return a.hdr.Write(a.rw)
}

// rawAppender continues an uncompressed point region in place.
type rawAppender struct {
	rw        io.ReadWriteSeeker
	pointSize int
}

func newRawAppender(rw io.ReadWriteSeeker, hdr *header.Header) (*rawAppender, error) {
	end := int64(hdr.OffsetToPointData) + int64(hdr.PointCount)*int64(hdr.PointRecordLength)
	if _, err := rw.Seek(end, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek append position: %w", err)
	}

	return &rawAppender{rw: rw, pointSize: int(hdr.PointRecordLength)}, nil
}

func (a *rawAppender) AppendPoints(points *point.PackedPoints) error {
	if points.Format().Size() != a.pointSize {
		return fmt.Errorf("point record size %d, file record length %d: %w",
			points.Format().Size(), a.pointSize, errs.ErrPointSizeMismatch)
	}
	if _, err := a.rw.Write(points.Bytes()); err != nil {
		return fmt.Errorf("append points: %w", err)
	}

	return nil
}

func (a *rawAppender) Done() error {
	return nil
}

var _ laz.PointAppender = (*rawAppender)(nil)
