package laz

import (
	"fmt"
	"io"
	"runtime"

	"github.com/arloliu/laspack/compress"
	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/internal/options"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

const defaultChunkSize = 50_000

// nativeBackend is the pure-Go codec variant. The parallel and
// single-threaded variants share everything except codec concurrency.
type nativeBackend struct {
	parallel    bool
	compression format.CompressionType
	chunkSize   uint32
}

func newNativeBackend(parallel bool, opts []NativeOption) Backend {
	b := &nativeBackend{
		parallel:    parallel,
		compression: format.CompressionZstd,
		chunkSize:   defaultChunkSize,
	}
	// Native options never fail.
	_ = options.Apply(b, opts...)

	return b
}

func (b *nativeBackend) Name() string {
	if b.parallel {
		return "native-parallel"
	}

	return "native-single"
}

func (b *nativeBackend) IsAvailable() bool { return true }

func (b *nativeBackend) SupportsAppend() bool { return true }

func (b *nativeBackend) concurrency() int {
	if b.parallel {
		return runtime.GOMAXPROCS(0)
	}

	return 1
}

func (b *nativeBackend) codecFor(typ format.CompressionType) (compress.Codec, error) {
	return compress.ByType(typ, b.concurrency())
}

func (b *nativeBackend) CreateReader(src io.ReadSeeker, hdr *header.Header, vlrs []vlr.VLR, selection DecompressionSelection) (PointReader, error) {
	rec, err := vlr.FindCodecRecord(vlrs)
	if err != nil {
		return nil, err
	}
	codec, err := b.codecFor(rec.Compression)
	if err != nil {
		return nil, err
	}

	pf, err := hdr.PointFormat()
	if err != nil {
		return nil, err
	}

	return newChunkStreamReader(src, codec, hdr, rec, skippedRanges(selection, pf, hdr.Version))
}

func (b *nativeBackend) CreateWriter(dst io.WriteSeeker, hdr *header.Header) (PointWriter, error) {
	if _, err := hdr.PointFormat(); err != nil {
		return nil, err
	}
	rec := vlr.CodecRecord{
		Compression: b.compression,
		ChunkSize:   b.chunkSize,
		PointSize:   hdr.PointRecordLength,
	}
	codec, err := b.codecFor(rec.Compression)
	if err != nil {
		return nil, err
	}

	return newChunkStreamWriter(dst, codec, rec), nil
}

// CreateAppender reopens the chunked stream for writing. The chunk table is
// dropped, a trailing partial chunk is decompressed back into the pending
// buffer, and the write position rewinds to that chunk so new points fill
// it before fresh chunks follow.
func (b *nativeBackend) CreateAppender(rw io.ReadWriteSeeker, hdr *header.Header, vlrs []vlr.VLR) (PointAppender, error) {
	rec, err := vlr.FindCodecRecord(vlrs)
	if err != nil {
		return nil, err
	}
	codec, err := b.codecFor(rec.Compression)
	if err != nil {
		return nil, err
	}

	sr, err := newChunkStreamReader(rw, codec, hdr, rec, nil)
	if err != nil {
		return nil, err
	}

	w := newChunkStreamWriter(rw, codec, rec)
	w.tableOffsetPos = int64(hdr.OffsetToPointData)
	w.headerWritten = true
	w.entries = sr.entries

	resumeAt := int64(hdr.OffsetToPointData) + tableOffsetSize
	if n := len(sr.entries); n > 0 {
		resumeAt = sr.chunkOffsets[n-1] + int64(sr.entries[n-1].compressedLen)
		if last := sr.entries[n-1]; last.pointCount < rec.ChunkSize {
			if err := sr.loadChunk(n - 1); err != nil {
				return nil, err
			}
			w.pending = append(w.pending, sr.current...)
			w.entries = sr.entries[:n-1]
			resumeAt = sr.chunkOffsets[n-1]
		}
	}
	if _, err := rw.Seek(resumeAt, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek append position: %w", err)
	}

	return &nativeAppender{w: w}, nil
}

type nativeAppender struct {
	w *chunkStreamWriter
}

func (a *nativeAppender) AppendPoints(points *point.PackedPoints) error {
	return a.w.WritePoints(points)
}

func (a *nativeAppender) Done() error {
	return a.w.Done()
}

var _ Backend = (*nativeBackend)(nil)

// Unavailable backends refuse every operation with the same error so the
// probe order is the only place availability matters.
func unavailableErr(name string) error {
	return fmt.Errorf("backend %s: %w", name, errs.ErrNoBackendAvailable)
}
