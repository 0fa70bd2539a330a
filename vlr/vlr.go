// Package vlr frames variable-length records (VLR) and extended
// variable-length records (EVLR).
//
// A VLR sits between the header and the point data and bounds its payload
// with a 16-bit length; an EVLR sits after the point data and uses a
// 64-bit length. Both share the 16-byte user id / record id addressing
// scheme that typed records key on.
package vlr

import (
	"fmt"
	"io"

	"github.com/arloliu/laspack/endian"
)

const (
	// HeaderSize is the serialized size of a VLR header.
	HeaderSize = 54
	// EVLRHeaderSize is the serialized size of an EVLR header.
	EVLRHeaderSize = 60

	userIDLen      = 16
	descriptionLen = 32
)

// VLR is one variable-length record: framing fields plus raw payload.
// Typed records decode from Data.
type VLR struct {
	UserID      string
	RecordID    uint16
	Description string
	Data        []byte
}

// EVLR is one extended variable-length record.
type EVLR struct {
	UserID      string
	RecordID    uint16
	Description string
	Data        []byte
}

// Is reports whether the record matches a user id / record id pair.
func (v VLR) Is(userID string, recordID uint16) bool {
	return v.UserID == userID && v.RecordID == recordID
}

func putPadded(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

func trimPadded(src []byte) string {
	end := len(src)
	for end > 0 && src[end-1] == 0 {
		end--
	}

	return string(src[:end])
}

// Write serializes the records to w in order.
func Write(w io.Writer, vlrs []VLR) error {
	engine := endian.GetLittleEndianEngine()
	hdr := make([]byte, HeaderSize)

	for i, v := range vlrs {
		if len(v.Data) > 0xFFFF {
			return fmt.Errorf("vlr %d: payload %d bytes exceeds 16-bit length", i, len(v.Data))
		}
		engine.PutUint16(hdr[0:2], 0)
		putPadded(hdr[2:18], v.UserID)
		engine.PutUint16(hdr[18:20], v.RecordID)
		engine.PutUint16(hdr[20:22], uint16(len(v.Data)))
		putPadded(hdr[22:54], v.Description)
		if _, err := w.Write(hdr); err != nil {
			return fmt.Errorf("write vlr %d header: %w", i, err)
		}
		if _, err := w.Write(v.Data); err != nil {
			return fmt.Errorf("write vlr %d payload: %w", i, err)
		}
	}

	return nil
}

// Read parses count records from r.
func Read(r io.Reader, count int) ([]VLR, error) {
	engine := endian.GetLittleEndianEngine()
	hdr := make([]byte, HeaderSize)
	vlrs := make([]VLR, 0, count)

	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, fmt.Errorf("read vlr %d header: %w", i, err)
		}
		v := VLR{
			UserID:      trimPadded(hdr[2:18]),
			RecordID:    engine.Uint16(hdr[18:20]),
			Description: trimPadded(hdr[22:54]),
		}
		v.Data = make([]byte, engine.Uint16(hdr[20:22]))
		if _, err := io.ReadFull(r, v.Data); err != nil {
			return nil, fmt.Errorf("read vlr %d payload: %w", i, err)
		}
		vlrs = append(vlrs, v)
	}

	return vlrs, nil
}

// SerializedSize returns the total byte size of the records when written.
func SerializedSize(vlrs []VLR) int {
	total := 0
	for _, v := range vlrs {
		total += HeaderSize + len(v.Data)
	}

	return total
}

// WriteEVLRs serializes extended records to w in order.
func WriteEVLRs(w io.Writer, evlrs []EVLR) error {
	engine := endian.GetLittleEndianEngine()
	hdr := make([]byte, EVLRHeaderSize)

	for i, v := range evlrs {
		engine.PutUint16(hdr[0:2], 0)
		putPadded(hdr[2:18], v.UserID)
		engine.PutUint16(hdr[18:20], v.RecordID)
		engine.PutUint64(hdr[20:28], uint64(len(v.Data)))
		putPadded(hdr[28:60], v.Description)
		if _, err := w.Write(hdr); err != nil {
			return fmt.Errorf("write evlr %d header: %w", i, err)
		}
		if _, err := w.Write(v.Data); err != nil {
			return fmt.Errorf("write evlr %d payload: %w", i, err)
		}
	}

	return nil
}

// ReadEVLRs parses count extended records from r.
func ReadEVLRs(r io.Reader, count int) ([]EVLR, error) {
	engine := endian.GetLittleEndianEngine()
	hdr := make([]byte, EVLRHeaderSize)
	evlrs := make([]EVLR, 0, count)

	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, fmt.Errorf("read evlr %d header: %w", i, err)
		}
		v := EVLR{
			UserID:      trimPadded(hdr[2:18]),
			RecordID:    engine.Uint16(hdr[18:20]),
			Description: trimPadded(hdr[28:60]),
		}
		v.Data = make([]byte, engine.Uint64(hdr[20:28]))
		if _, err := io.ReadFull(r, v.Data); err != nil {
			return nil, fmt.Errorf("read evlr %d payload: %w", i, err)
		}
		evlrs = append(evlrs, v)
	}

	return evlrs, nil
}
