package laspack

import (
	"fmt"
	"io"
	"os"

	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/laz"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

// Writer streams point records into a new LAS file. The header's
// compression bit decides whether point data goes through a codec backend
// or straight to disk.
//
// Close is mandatory: codec backends buffer internally and the header's
// final counts are only patched in on close.
type Writer struct {
	hdr    *header.Header
	stream laz.PointWriter
	closer io.Closer
	evlrs  []vlr.EVLR

	written uint64
	closed  bool
}

// Create creates a LAS file for writing. The header and VLR section are
// emitted immediately; hdr's offsets and VLR count are updated to match.
func Create(path string, hdr *header.Header, vlrs []vlr.VLR, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w, err := NewWriter(f, hdr, vlrs, opts...)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	w.closer = f

	return w, nil
}

// NewWriter opens a LAS stream over an in-memory or already-open
// destination. Compressed output requires the destination to also be
// readable when the selected backend re-reads its own header.
func NewWriter(dst io.WriteSeeker, hdr *header.Header, vlrs []vlr.VLR, opts ...Option) (*Writer, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if _, err := hdr.PointFormat(); err != nil {
		return nil, err
	}

	var stream laz.PointWriter
	if hdr.IsCompressed() {
		backend, err := laz.Select(cfg.backends)
		if err != nil {
			return nil, err
		}
		stream, err = backend.CreateWriter(dst, hdr)
		if err != nil {
			return nil, err
		}
	} else {
		stream = &rawPointWriter{dst: dst}
	}

	if err := stream.WriteInitialHeaderAndVLRs(hdr, vlrs); err != nil {
		return nil, err
	}

	return &Writer{hdr: hdr, stream: stream}, nil
}

// Header returns the in-memory header. Mutations to bounds or encoding
// flags before Close end up in the final on-disk header.
func (w *Writer) Header() *header.Header {
	return w.hdr
}

// WritePoints appends a batch of point records to the stream.
func (w *Writer) WritePoints(points *point.PackedPoints) error {
	if err := w.stream.WritePoints(points); err != nil {
		return err
	}
	w.written += uint64(points.Len())

	return nil
}

// AppendEVLR queues an extended record for emission after the point data.
func (w *Writer) AppendEVLR(e vlr.EVLR) {
	w.evlrs = append(w.evlrs, e)
}

// Close finalizes the codec state, emits queued EVLRs, patches the header
// with the final counts and offsets, and releases the file handle when
// Create opened one.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.finish()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

func (w *Writer) finish() error {
	if err := w.stream.Done(); err != nil {
		return err
	}

	if len(w.evlrs) > 0 {
		pos, err := w.stream.Destination().Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("locate evlr section: %w", err)
		}
		if err := vlr.WriteEVLRs(w.stream.Destination(), w.evlrs); err != nil {
			return err
		}
		w.hdr.StartOfFirstEVLR = uint64(pos)
		w.hdr.EVLRCount = uint32(len(w.evlrs))
	}

	w.hdr.PointCount = w.written

	return w.stream.WriteUpdatedHeader(w.hdr)
}

// rawPointWriter emits uncompressed point records with the default header
// and VLR behavior.
type rawPointWriter struct {
	dst io.WriteSeeker
}

func (w *rawPointWriter) Destination() io.WriteSeeker {
	return w.dst
}

func (w *rawPointWriter) WriteInitialHeaderAndVLRs(hdr *header.Header, vlrs []vlr.VLR) error {
	return laz.WriteHeaderAndVLRs(w.dst, hdr, vlrs)
}

func (w *rawPointWriter) WritePoints(points *point.PackedPoints) error {
	if _, err := w.dst.Write(points.Bytes()); err != nil {
		return fmt.Errorf("write points: %w", err)
	}

	return nil
}

func (w *rawPointWriter) Done() error {
	return nil
}

func (w *rawPointWriter) WriteUpdatedHeader(hdr *header.Header) error {
	if _, err := w.dst.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	if err := hdr.Write(w.dst); err != nil {
		return err
	}
	if _, err := w.dst.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek end: %w", err)
	}

	return nil
}

var _ laz.PointWriter = (*rawPointWriter)(nil)
