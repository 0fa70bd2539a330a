// Package errs defines the sentinel errors shared across laspack packages.
//
// Errors are grouped by the failure class they represent. All of them are
// fail-fast: nothing in this domain is retried, callers either handle the
// condition or propagate it.
package errs

import "errors"

// Capability errors: the chosen backend cannot perform the requested
// operation.
var (
	ErrNoBackendAvailable = errors.New("no compression backend available")
	ErrAppendNotSupported = errors.New("backend does not support appending")
)

// Format-inconsistency errors: the file contradicts itself or the codec
// disagrees with the already-parsed header. These indicate corruption.
var (
	ErrHeaderMismatch        = errors.New("codec header does not match file header")
	ErrPointFormatMismatch   = errors.New("codec point format does not match file header")
	ErrInvalidHeaderSize     = errors.New("invalid header size")
	ErrInvalidFileSignature  = errors.New("invalid file signature")
	ErrInvalidRecordLength   = errors.New("point record length does not match point format")
	ErrMissingCodecRecord    = errors.New("compressed file has no codec record")
	ErrChunkChecksumMismatch = errors.New("chunk checksum mismatch")
	ErrInvalidChunkTable     = errors.New("invalid chunk table")
)

// Unsupported-variation errors: valid files using features laspack does
// not implement.
var (
	ErrUnsupportedPointFormat        = errors.New("unsupported point format")
	ErrUnsupportedCompressionType    = errors.New("unsupported compression type")
	ErrUnsupportedVersion            = errors.New("unsupported file version")
	ErrCompressedWaveformUnsupported = errors.New("compressed waveform packets are not supported")
	ErrUnsupportedSampleWidth        = errors.New("unsupported waveform sample width")
	ErrHeterogeneousDescriptors      = errors.New("waveform packet descriptors disagree")
)

// Validation errors: bad arguments caught before any byte is read or
// written.
var (
	ErrNonPositiveChunkSize      = errors.New("chunk size must be positive")
	ErrMaskLengthMismatch        = errors.New("validity mask length does not match point count")
	ErrInconsistentWaveformSizes = errors.New("inconsistent waveform sizes")
	ErrPointSizeMismatch         = errors.New("point buffer size is not a multiple of the record size")
)

// Resource errors: a collaborator the operation depends on is absent.
var (
	ErrNoWaveformReader      = errors.New("no waveform reader available")
	ErrNoWaveformDescriptors = errors.New("no waveform packet descriptors found")
	ErrWaveformNotExternal   = errors.New("waveform data is not stored in an external file")
	ErrNoWavePacketField     = errors.New("point format carries no wave packet field")
)
