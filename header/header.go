// Package header reads and writes the fixed LAS file header.
//
// Three header sizes exist: 227 bytes through file version 1.2, 235 bytes
// for 1.3 (adds the waveform data start), and 375 bytes for 1.4 (adds the
// extended variable-length record block and 64-bit point counts). A header
// may declare a larger size than its version's standard size; the surplus
// bytes are preserved verbatim so an in-place rewrite never changes the
// serialized length.
package header

import (
	"fmt"
	"io"
	"math"

	"github.com/arloliu/laspack/endian"
	"github.com/arloliu/laspack/errs"
	"github.com/arloliu/laspack/format"
)

// Standard header sizes by file version.
const (
	SizeV12 = 227
	SizeV13 = 235
	SizeV14 = 375
)

var signature = [4]byte{'L', 'A', 'S', 'F'}

// Version is the file format version pair from the header.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Header is the parsed LAS file header.
type Header struct {
	FileSourceID       uint16         // byte offset 4-5
	GlobalEncoding     GlobalEncoding // byte offset 6-7
	ProjectID          [16]byte       // byte offset 8-23
	Version            Version        // byte offset 24-25
	SystemIdentifier   [32]byte       // byte offset 26-57
	GeneratingSoftware [32]byte       // byte offset 58-89
	CreationDayOfYear  uint16         // byte offset 90-91
	CreationYear       uint16         // byte offset 92-93
	OffsetToPointData  uint32         // byte offset 96-99
	VLRCount           uint32         // byte offset 100-103
	// PointFormatID is the raw on-disk format id. Bit 7 marks the point
	// data as compressed; use UncompressedFormatID for the catalog id.
	PointFormatID     uint8      // byte offset 104
	PointRecordLength uint16     // byte offset 105-106
	Scales            [3]float64 // byte offset 131-154
	Offsets           [3]float64 // byte offset 155-178
	// Bounds holds max/min pairs per axis in file order:
	// maxX, minX, maxY, minY, maxZ, minZ.
	Bounds [6]float64 // byte offset 179-226

	// PointCount is the unified point record count. On write the legacy
	// 32-bit count is derived from it when representable.
	PointCount     uint64
	PointsByReturn [15]uint64

	// StartOfWaveformData is only serialized for version minor >= 3.
	StartOfWaveformData uint64
	// StartOfFirstEVLR and EVLRCount are only serialized for version 1.4.
	StartOfFirstEVLR uint64
	EVLRCount        uint32

	// headerSize is the declared on-disk size; extra holds any bytes
	// beyond the version's standard size.
	headerSize uint16
	extra      []byte
}

// New creates a header for the given version with the standard size for
// that version and a point-data offset directly after the header.
func New(version Version) (*Header, error) {
	h := &Header{Version: version}

	switch {
	case version.Major != 1 || version.Minor > 4:
		return nil, fmt.Errorf("version %s: %w", version, errs.ErrUnsupportedVersion)
	case version.Minor >= 4:
		h.headerSize = SizeV14
	case version.Minor == 3:
		h.headerSize = SizeV13
	default:
		h.headerSize = SizeV12
	}

	h.OffsetToPointData = uint32(h.headerSize)
	h.Scales = [3]float64{0.001, 0.001, 0.001}

	return h, nil
}

// Size returns the declared serialized size of the header.
func (h *Header) Size() int {
	return int(h.headerSize)
}

func (h *Header) standardSize() int {
	switch {
	case h.Version.Minor >= 4:
		return SizeV14
	case h.Version.Minor == 3:
		return SizeV13
	default:
		return SizeV12
	}
}

// IsCompressed reports whether the point data is compressed, from the
// format id flag bit.
func (h *Header) IsCompressed() bool {
	return format.IsCompressedID(h.PointFormatID)
}

// SetCompressed sets or clears the compression flag on the format id.
func (h *Header) SetCompressed(compressed bool) {
	if compressed {
		h.PointFormatID = format.CompressedID(h.PointFormatID)
	} else {
		h.PointFormatID = format.UncompressedID(h.PointFormatID)
	}
}

// UncompressedFormatID returns the format id with the compression flag
// stripped.
func (h *Header) UncompressedFormatID() uint8 {
	return format.UncompressedID(h.PointFormatID)
}

// PointFormat resolves the header's format id and record length against the
// point format catalog.
func (h *Header) PointFormat() (format.PointFormat, error) {
	return format.FromRecordLength(h.PointFormatID, h.PointRecordLength)
}

// Read parses a header from r, which must be positioned at the start of the
// file. It consumes exactly the declared header size.
func Read(r io.Reader) (*Header, error) {
	buf := make([]byte, SizeV12)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if [4]byte(buf[0:4]) != signature {
		return nil, errs.ErrInvalidFileSignature
	}

	engine := endian.GetLittleEndianEngine()
	h := &Header{}

	h.FileSourceID = engine.Uint16(buf[4:6])
	h.GlobalEncoding = GlobalEncoding(engine.Uint16(buf[6:8]))
	copy(h.ProjectID[:], buf[8:24])
	h.Version = Version{Major: buf[24], Minor: buf[25]}
	if h.Version.Major != 1 || h.Version.Minor > 4 {
		return nil, fmt.Errorf("version %s: %w", h.Version, errs.ErrUnsupportedVersion)
	}
	copy(h.SystemIdentifier[:], buf[26:58])
	copy(h.GeneratingSoftware[:], buf[58:90])
	h.CreationDayOfYear = engine.Uint16(buf[90:92])
	h.CreationYear = engine.Uint16(buf[92:94])
	h.headerSize = engine.Uint16(buf[94:96])
	h.OffsetToPointData = engine.Uint32(buf[96:100])
	h.VLRCount = engine.Uint32(buf[100:104])
	h.PointFormatID = buf[104]
	h.PointRecordLength = engine.Uint16(buf[105:107])
	h.PointCount = uint64(engine.Uint32(buf[107:111]))
	for i := 0; i < 5; i++ {
		h.PointsByReturn[i] = uint64(engine.Uint32(buf[111+i*4 : 115+i*4]))
	}
	for i := 0; i < 3; i++ {
		h.Scales[i] = math.Float64frombits(engine.Uint64(buf[131+i*8 : 139+i*8]))
		h.Offsets[i] = math.Float64frombits(engine.Uint64(buf[155+i*8 : 163+i*8]))
	}
	for i := 0; i < 6; i++ {
		h.Bounds[i] = math.Float64frombits(engine.Uint64(buf[179+i*8 : 187+i*8]))
	}

	std := h.standardSize()
	if int(h.headerSize) < std {
		return nil, fmt.Errorf("declared size %d below %d for version %s: %w",
			h.headerSize, std, h.Version, errs.ErrInvalidHeaderSize)
	}

	rest := make([]byte, int(h.headerSize)-SizeV12)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("read header tail: %w", err)
	}

	if h.Version.Minor >= 3 {
		h.StartOfWaveformData = engine.Uint64(rest[0:8])
	}
	if h.Version.Minor >= 4 {
		h.StartOfFirstEVLR = engine.Uint64(rest[8:16])
		h.EVLRCount = engine.Uint32(rest[16:20])
		count := engine.Uint64(rest[20:28])
		if count != 0 {
			h.PointCount = count
		}
		for i := 0; i < 15; i++ {
			by := engine.Uint64(rest[28+i*8 : 36+i*8])
			if by != 0 {
				h.PointsByReturn[i] = by
			}
		}
	}
	if tail := rest[std-SizeV12:]; len(tail) > 0 {
		h.extra = tail
	}

	return h, nil
}

// Bytes serializes the header. The result is always exactly Size() bytes,
// which is what makes the in-place header patch after EVLR writes safe.
func (h *Header) Bytes() []byte {
	engine := endian.GetLittleEndianEngine()
	buf := make([]byte, h.headerSize)

	copy(buf[0:4], signature[:])
	engine.PutUint16(buf[4:6], h.FileSourceID)
	engine.PutUint16(buf[6:8], uint16(h.GlobalEncoding))
	copy(buf[8:24], h.ProjectID[:])
	buf[24] = h.Version.Major
	buf[25] = h.Version.Minor
	copy(buf[26:58], h.SystemIdentifier[:])
	copy(buf[58:90], h.GeneratingSoftware[:])
	engine.PutUint16(buf[90:92], h.CreationDayOfYear)
	engine.PutUint16(buf[92:94], h.CreationYear)
	engine.PutUint16(buf[94:96], h.headerSize)
	engine.PutUint32(buf[96:100], h.OffsetToPointData)
	engine.PutUint32(buf[100:104], h.VLRCount)
	buf[104] = h.PointFormatID
	engine.PutUint16(buf[105:107], h.PointRecordLength)

	legacyCount, legacyByReturn := h.legacyCounts()
	engine.PutUint32(buf[107:111], legacyCount)
	for i := 0; i < 5; i++ {
		engine.PutUint32(buf[111+i*4:115+i*4], legacyByReturn[i])
	}
	for i := 0; i < 3; i++ {
		engine.PutUint64(buf[131+i*8:139+i*8], math.Float64bits(h.Scales[i]))
		engine.PutUint64(buf[155+i*8:163+i*8], math.Float64bits(h.Offsets[i]))
	}
	for i := 0; i < 6; i++ {
		engine.PutUint64(buf[179+i*8:187+i*8], math.Float64bits(h.Bounds[i]))
	}

	if h.Version.Minor >= 3 {
		engine.PutUint64(buf[227:235], h.StartOfWaveformData)
	}
	if h.Version.Minor >= 4 {
		engine.PutUint64(buf[235:243], h.StartOfFirstEVLR)
		engine.PutUint32(buf[243:247], h.EVLRCount)
		engine.PutUint64(buf[247:255], h.PointCount)
		for i := 0; i < 15; i++ {
			engine.PutUint64(buf[255+i*8:263+i*8], h.PointsByReturn[i])
		}
	}
	copy(buf[h.standardSize():], h.extra)

	return buf
}

// legacyCounts derives the 32-bit count fields. Extended point formats and
// counts beyond 32 bits zero them, as 1.4 requires.
func (h *Header) legacyCounts() (uint32, [5]uint32) {
	var byReturn [5]uint32

	fmtID := format.UncompressedID(h.PointFormatID)
	if fmtID >= 6 || h.PointCount > math.MaxUint32 {
		return 0, byReturn
	}

	for i := 0; i < 5; i++ {
		if h.PointsByReturn[i] <= math.MaxUint32 {
			byReturn[i] = uint32(h.PointsByReturn[i])
		}
	}

	return uint32(h.PointCount), byReturn
}

// Write serializes the header to w.
func (h *Header) Write(w io.Writer) error {
	if _, err := w.Write(h.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	return nil
}
