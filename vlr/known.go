package vlr

import (
	"fmt"

	"github.com/arloliu/laspack/endian"
	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
)

// Waveform packet descriptor records are published under the LASF_Spec user
// id with record ids 100 through 354. A point's descriptor index i refers
// to record id 99+i; index 0 means "no waveform".
const (
	WaveformDescriptorUserID   = "LASF_Spec"
	WaveformDescriptorIDOffset = 99
	WaveformDescriptorMinID    = 100
	WaveformDescriptorMaxID    = 354
)

// IsWaveformDescriptor reports whether the record is a waveform packet
// descriptor.
func IsWaveformDescriptor(v VLR) bool {
	return v.UserID == WaveformDescriptorUserID &&
		v.RecordID >= WaveformDescriptorMinID &&
		v.RecordID <= WaveformDescriptorMaxID
}

// WaveformDescriptorRecordID maps a point's descriptor index to the record
// id of its descriptor.
func WaveformDescriptorRecordID(index uint8) uint16 {
	return uint16(index) + WaveformDescriptorIDOffset
}

// The codec record describes how compressed point data is chunked, in the
// position a LAZ file would carry its laszip record.
const (
	CodecUserID      = "laspack encoded"
	CodecRecordID    = 22204
	codecRecordSize  = 10
	codecVersion     = 1
	codecDescription = "laspack chunked point compression"
)

// CodecRecord is the typed payload of the codec VLR: everything a reader
// needs to reconstruct the chunked point stream.
type CodecRecord struct {
	// Compression is the chunk codec used for every chunk.
	Compression format.CompressionType
	// ChunkSize is the number of points per full chunk.
	ChunkSize uint32
	// PointSize is the full point record size the writer compressed.
	PointSize uint16
}

// NewCodecVLR frames a codec record as a VLR.
func NewCodecVLR(rec CodecRecord) VLR {
	engine := endian.GetLittleEndianEngine()
	data := make([]byte, codecRecordSize)
	data[0] = codecVersion
	data[1] = uint8(rec.Compression)
	engine.PutUint32(data[2:6], rec.ChunkSize)
	engine.PutUint16(data[6:8], rec.PointSize)
	// bytes 8-9 reserved

	return VLR{
		UserID:      CodecUserID,
		RecordID:    CodecRecordID,
		Description: codecDescription,
		Data:        data,
	}
}

// FindCodecRecord locates and decodes the codec record among the file's
// VLRs. Absence on a compressed file means the file cannot be opened.
func FindCodecRecord(vlrs []VLR) (CodecRecord, error) {
	for _, v := range vlrs {
		if !v.Is(CodecUserID, CodecRecordID) {
			continue
		}

		return decodeCodecRecord(v.Data)
	}

	return CodecRecord{}, errs.ErrMissingCodecRecord
}

func decodeCodecRecord(data []byte) (CodecRecord, error) {
	if len(data) < codecRecordSize {
		return CodecRecord{}, fmt.Errorf("codec record payload %d bytes: %w", len(data), errs.ErrMissingCodecRecord)
	}
	if data[0] != codecVersion {
		return CodecRecord{}, fmt.Errorf("codec record version %d: %w", data[0], errs.ErrUnsupportedCompressionType)
	}

	engine := endian.GetLittleEndianEngine()
	rec := CodecRecord{
		Compression: format.CompressionType(data[1]),
		ChunkSize:   engine.Uint32(data[2:6]),
		PointSize:   engine.Uint16(data[6:8]),
	}
	if rec.ChunkSize == 0 || rec.PointSize == 0 {
		return CodecRecord{}, fmt.Errorf("codec record chunk size %d point size %d: %w",
			rec.ChunkSize, rec.PointSize, errs.ErrInvalidChunkTable)
	}

	return rec, nil
}
