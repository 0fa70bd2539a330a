// Package laz implements the compressed point stream backends.
//
// Point data in a compressed file is stored as independently compressed
// chunks of packed records, described by a codec record among the file's
// VLRs and indexed by a chunk table at the end of the point data region.
// Three backend variants produce and consume this stream: the parallel and
// single-threaded native codecs (pure Go) and an external-library codec
// that is only present in cgo builds. Callers pick a backend through an
// ordered candidate list probed for availability, never by linking against
// one directly.
package laz

import (
	"io"

	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
	"github.com/arloliu/laspack/header"
	"github.com/arloliu/laspack/internal/options"
	"github.com/arloliu/laspack/point"
	"github.com/arloliu/laspack/vlr"
)

// PointReader streams decompressed point records from a source.
//
// A reader is single-caller: concurrent use must be serialized externally.
type PointReader interface {
	// Source returns the underlying source handle.
	Source() io.ReadSeeker
	// ReadNPoints returns a buffer holding up to n point records. When
	// fewer points remain it short-reads without error; at end of stream
	// it returns an empty buffer.
	ReadNPoints(n int) ([]byte, error)
	// Seek positions the stream at the zero-based point index.
	Seek(pointIndex uint64) error
	// Close releases codec state. It is safe to call more than once.
	Close() error
}

// PointWriter streams point records into a destination, compressing them
// chunk by chunk.
type PointWriter interface {
	// Destination returns the underlying destination handle.
	Destination() io.WriteSeeker
	// WriteInitialHeaderAndVLRs emits the header and VLR section before
	// any point data. Backends may append their own records and adjust
	// the header's offsets first.
	WriteInitialHeaderAndVLRs(hdr *header.Header, vlrs []vlr.VLR) error
	// WritePoints compresses and emits a batch of records.
	WritePoints(points *point.PackedPoints) error
	// Done finalizes the codec state. Compressors buffer internally, so
	// skipping Done loses data.
	Done() error
	// WriteUpdatedHeader rewrites the header in place after the point
	// data and any trailing records are on disk. The serialized size
	// must not change.
	WriteUpdatedHeader(hdr *header.Header) error
}

// PointAppender appends records to an existing compressed stream.
type PointAppender interface {
	// AppendPoints compresses and emits a batch of records after the
	// existing ones.
	AppendPoints(points *point.PackedPoints) error
	// Done finalizes the codec state and the chunk table.
	Done() error
}

// Backend is one compressed point stream implementation. Backends are
// stateless; availability is probed once per candidate when selecting.
type Backend interface {
	// Name identifies the variant in errors and logs.
	Name() string
	// IsAvailable reports whether the codec can run in this build.
	IsAvailable() bool
	// SupportsAppend reports whether CreateAppender works.
	SupportsAppend() bool
	// CreateReader builds a reader over src, whose header and VLRs have
	// already been parsed. The selection is translated to the codec's
	// own mask representation here, once.
	CreateReader(src io.ReadSeeker, hdr *header.Header, vlrs []vlr.VLR, selection DecompressionSelection) (PointReader, error)
	// CreateWriter builds a writer; dst must be positioned at the start
	// of the file.
	CreateWriter(dst io.WriteSeeker, hdr *header.Header) (PointWriter, error)
	// CreateAppender builds an appender over an existing file.
	CreateAppender(rw io.ReadWriteSeeker, hdr *header.Header, vlrs []vlr.VLR) (PointAppender, error)
}

// DefaultBackends returns the backend candidates in priority order: the
// parallel native codec, the single-threaded native codec, then the
// external-library codec.
func DefaultBackends() []Backend {
	return []Backend{
		NewParallelNative(),
		NewSingleThreadNative(),
		NewExternalLibrary(),
	}
}

// Select returns the first available backend from the candidate list, in
// order, probing each candidate at most once. An empty list means the
// default candidates.
func Select(candidates []Backend) (Backend, error) {
	if len(candidates) == 0 {
		candidates = DefaultBackends()
	}
	for _, b := range candidates {
		if b.IsAvailable() {
			return b, nil
		}
	}

	return nil, errs.ErrNoBackendAvailable
}

// DetectAvailable returns the default backends that are available in this
// build.
func DetectAvailable() []Backend {
	var available []Backend
	for _, b := range DefaultBackends() {
		if b.IsAvailable() {
			available = append(available, b)
		}
	}

	return available
}

// NativeOption configures a native backend.
type NativeOption = options.Option[*nativeBackend]

// WithCompression selects the chunk codec the writer records in the codec
// VLR. Readers pick the codec from the file, not from this option.
func WithCompression(t format.CompressionType) NativeOption {
	return options.NoError(func(b *nativeBackend) {
		b.compression = t
	})
}

// WithChunkSize sets the number of points per compressed chunk.
func WithChunkSize(points uint32) NativeOption {
	return options.NoError(func(b *nativeBackend) {
		if points > 0 {
			b.chunkSize = points
		}
	})
}

// NewParallelNative returns the native codec variant that compresses and
// decompresses with internal worker parallelism. The parallelism is opaque:
// the reader and writer contracts stay synchronous.
func NewParallelNative(opts ...NativeOption) Backend {
	return newNativeBackend(true, opts)
}

// NewSingleThreadNative returns the single-threaded native codec variant.
func NewSingleThreadNative(opts ...NativeOption) Backend {
	return newNativeBackend(false, opts)
}

// NewExternalLibrary returns the external-library codec variant. It is
// only available in builds that link the external library; probe with
// IsAvailable before use.
func NewExternalLibrary() Backend {
	return externalBackend{}
}
