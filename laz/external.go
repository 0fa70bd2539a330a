package laz

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

// The external library only speaks zstd, and it insists on parsing the
// file itself. Its reader rewinds the source and re-reads the header and
// VLR section instead of trusting the caller's parse; the two are then
// cross-checked. Its writer cannot resume a stream, so append is refused.
type externalBackend struct{}

// formatIDOffset is the byte position of the point format id in the header.
const formatIDOffset = 104

func (externalBackend) Name() string { return "external-library" }

func (externalBackend) IsAvailable() bool { return externalCodecAvailable }

func (externalBackend) SupportsAppend() bool { return false }

func (externalBackend) CreateReader(src io.ReadSeeker, hdr *header.Header, vlrs []vlr.VLR, selection DecompressionSelection) (PointReader, error) {
	codec, err := newExternalCodec()
	if err != nil {
		return nil, err
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind source: %w", err)
	}
	own, err := header.Read(src)
	if err != nil {
		return nil, err
	}
	if own.PointFormatID != hdr.PointFormatID {
		return nil, fmt.Errorf("point format id %d, caller parsed %d: %w",
			own.PointFormatID, hdr.PointFormatID, errs.ErrPointFormatMismatch)
	}
	if own.PointRecordLength != hdr.PointRecordLength {
		return nil, fmt.Errorf("point record length %d, caller parsed %d: %w",
			own.PointRecordLength, hdr.PointRecordLength, errs.ErrHeaderMismatch)
	}
	ownVLRs, err := vlr.Read(src, int(own.VLRCount))
	if err != nil {
		return nil, err
	}

	rec, err := vlr.FindCodecRecord(ownVLRs)
	if err != nil {
		return nil, err
	}
	if rec.Compression != format.CompressionZstd {
		return nil, fmt.Errorf("external codec cannot decode %s chunks: %w",
			rec.Compression, errs.ErrUnsupportedCompressionType)
	}

	pf, err := own.PointFormat()
	if err != nil {
		return nil, err
	}
	slog.Debug("external codec selection mask", "mask", selection.ToExternal())

	return newChunkStreamReader(src, codec, own, rec, skippedRanges(selection, pf, own.Version))
}

// CreateWriter requires dst to also be readable: the library emits the
// header with the compression bit cleared and patches the format id byte
// afterwards, which needs read-back verification on close.
func (externalBackend) CreateWriter(dst io.WriteSeeker, hdr *header.Header) (PointWriter, error) {
	codec, err := newExternalCodec()
	if err != nil {
		return nil, err
	}
	rw, ok := dst.(io.ReadWriteSeeker)
	if !ok {
		return nil, fmt.Errorf("external codec destination must be readable: %w", errs.ErrNoBackendAvailable)
	}
	if _, err := hdr.PointFormat(); err != nil {
		return nil, err
	}

	rec := vlr.CodecRecord{
		Compression: format.CompressionZstd,
		ChunkSize:   defaultChunkSize,
		PointSize:   hdr.PointRecordLength,
	}

	return &externalWriter{
		rw:     rw,
		stream: newChunkStreamWriter(rw, codec, rec),
	}, nil
}

func (externalBackend) CreateAppender(io.ReadWriteSeeker, *header.Header, []vlr.VLR) (PointAppender, error) {
	return nil, fmt.Errorf("external-library: %w", errs.ErrAppendNotSupported)
}

type externalWriter struct {
	rw     io.ReadWriteSeeker
	stream *chunkStreamWriter
}

func (w *externalWriter) Destination() io.WriteSeeker {
	return w.rw
}

func (w *externalWriter) WriteInitialHeaderAndVLRs(hdr *header.Header, vlrs []vlr.VLR) error {
	compressedID := hdr.PointFormatID
	hdr.SetCompressed(false)
	err := w.stream.WriteInitialHeaderAndVLRs(hdr, vlrs)
	hdr.PointFormatID = compressedID
	if err != nil {
		return err
	}

	// Restore the compression bit on disk.
	if _, err := w.rw.Seek(formatIDOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek format id: %w", err)
	}
	if _, err := w.rw.Write([]byte{compressedID}); err != nil {
		return fmt.Errorf("patch format id: %w", err)
	}
	if _, err := w.rw.Seek(w.stream.tableOffsetPos+tableOffsetSize, io.SeekStart); err != nil {
		return fmt.Errorf("seek point data: %w", err)
	}

	return nil
}

func (w *externalWriter) WritePoints(points *point.PackedPoints) error {
	return w.stream.WritePoints(points)
}

func (w *externalWriter) Done() error {
	return w.stream.Done()
}

// WriteUpdatedHeader re-reads the header from disk, folds the caller's
// final counts and offsets into it, and rewrites it at the same size.
func (w *externalWriter) WriteUpdatedHeader(hdr *header.Header) error {
	if _, err := w.rw.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}
	onDisk, err := header.Read(w.rw)
	if err != nil {
		return err
	}
	if onDisk.Size() != hdr.Size() {
		return fmt.Errorf("on-disk header %d bytes, updated header %d: %w",
			onDisk.Size(), hdr.Size(), errs.ErrHeaderMismatch)
	}

	onDisk.PointFormatID = hdr.PointFormatID
	onDisk.PointCount = hdr.PointCount
	onDisk.PointsByReturn = hdr.PointsByReturn
	onDisk.GlobalEncoding = hdr.GlobalEncoding
	onDisk.Bounds = hdr.Bounds
	onDisk.StartOfWaveformData = hdr.StartOfWaveformData
	onDisk.StartOfFirstEVLR = hdr.StartOfFirstEVLR
	onDisk.EVLRCount = hdr.EVLRCount

	if _, err := w.rw.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek header: %w", err)
	}

	return onDisk.Write(w.rw)
}

var (
	_ Backend     = externalBackend{}
	_ PointWriter = (*externalWriter)(nil)
)
