package waveform

import (
	"errors"
	"fmt"
	"io"
)

// Reader streams fixed-size packets from the auxiliary waveform file. It
// addresses packets by index; byte offsets divide down to indexes at the
// engine boundary.
type Reader struct {
	src        io.ReadSeeker
	packetSize int
	closed     bool
}

// NewReader wraps an open waveform data source. packetSize must match the
// descriptor registry of the owning file.
func NewReader(src io.ReadSeeker, packetSize int) (*Reader, error) {
	if packetSize <= 0 {
		return nil, fmt.Errorf("packet size %d: %w", packetSize, errInvalidPacketSize)
	}

	return &Reader{src: src, packetSize: packetSize}, nil
}

var errInvalidPacketSize = errors.New("waveform packet size must be positive")

// PacketSize returns the fixed packet byte size.
func (r *Reader) PacketSize() int {
	return r.packetSize
}

// Seek positions the stream at the zero-based packet index.
func (r *Reader) Seek(packetIndex uint64) error {
	if _, err := r.src.Seek(int64(packetIndex)*int64(r.packetSize), io.SeekStart); err != nil {
		return fmt.Errorf("seek waveform packet %d: %w", packetIndex, err)
	}

	return nil
}

// ReadPackets reads up to n packets from the current position. Fewer
// remaining packets short-read without error; at end of data it returns an
// empty buffer. A trailing partial packet is dropped.
func (r *Reader) ReadPackets(n int) ([]byte, error) {
	buf := make([]byte, n*r.packetSize)
	read, err := io.ReadFull(r.src, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read waveform packets: %w", err)
	}

	return buf[:(read/r.packetSize)*r.packetSize], nil
}

// Close releases the underlying source when it is closable. It is safe to
// call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
