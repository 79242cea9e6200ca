package sas7bdat

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// FormatWidth is the integer width a file's architecture declares: 4 bytes
// for Bit32, 8 bytes for Bit64. It governs every in-page offset, length, and
// count in the subheader region.
type FormatWidth uint8

const (
	Bit32 FormatWidth = iota
	Bit64
)

// pageBitOffset returns the byte offset within a page at which the
// page-header triple begins.
func (f FormatWidth) pageBitOffset() int {
	if f == Bit64 {
		return 32
	}
	return 16
}

// intWidth returns the width, in bytes, of every offset/length/count field
// inside the subheader region.
func (f FormatWidth) intWidth() int {
	if f == Bit64 {
		return 8
	}
	return 4
}

// subheaderPointerSize is the payload of one subheader descriptor: two
// integers (offset, length) plus two status bytes, i.e. 2*intWidth + 2.
// Descriptors themselves are packed at a stride of 3*intWidth.
func (f FormatWidth) subheaderPointerSize() int {
	return 2*f.intWidth() + 2
}

// Platform is the operating system family a file was written on.
type Platform uint8

const (
	PlatformUnknown Platform = iota
	PlatformUnix
	PlatformWindows
)

func (p Platform) String() string {
	switch p {
	case PlatformUnix:
		return "unix"
	case PlatformWindows:
		return "windows"
	default:
		return "unknown"
	}
}

// Compression identifies the block decompressor a file's data region uses.
type Compression = compression

const (
	CompressionNone = compressionNone
	CompressionRLE  = compressionRLE
	CompressionRDC  = compressionRDC
)

func (c compression) String() string {
	switch c {
	case compressionRLE:
		return "RLE"
	case compressionRDC:
		return "RDC"
	default:
		return "None"
	}
}

// FileMetadata is the file-level information captured once at Open.
type FileMetadata struct {
	Endian   Endian
	Format   FormatWidth
	Platform Platform
	Encoding string

	DatasetName     string
	FileType        string
	SASRelease      string
	SASServerType   string
	OSType          string
	OSName          string
	Creator         string
	CreatorProc     string
	DateCreated     time.Time
	DateModified    time.Time
	HeaderLength    int
	PageLength      int
	PageCount       int
	Compression     Compression
	RowLength       int
	RowCount        int
	MixPageRowCount int
	ColumnCount     int

	// Opaque internal counts consulted only while parsing the first
	// ColumnText/RowSize subheaders (§3).
	colCountP1 int
	colCountP2 int
	lcs        int
	lcp        int

	codec *encoding.Decoder
}

// ColumnInfo describes one column's schema and decode binding, ordered by
// its zero-based position in the row.
type ColumnInfo struct {
	Name   string
	Label  string
	Format string

	LogicalType LogicalType
	Offset      int
	Length      int
	Index       int

	Decoder fieldDecoder
}

var magic = [32]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xC2, 0xEA, 0x81, 0x60,
	0xB3, 0x14, 0x11, 0xCF, 0xBD, 0x92, 0x08, 0x00,
	0x09, 0xC7, 0x31, 0x8C, 0x18, 0x1F, 0x10, 0x11,
}

const initialHeaderWindow = 288

// parseHeader reads and decodes the fixed SAS7BDAT header from r, per §4.6.
// On return, r's cursor is positioned header_length bytes into the file,
// ready for the subheader decoder to take over; when header_length is less
// than 288, the cursor is left 288 bytes in.
func parseHeader(r io.Reader) (*FileMetadata, error) {
	buf := make([]byte, initialHeaderWindow)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(ErrTruncated, "reading initial 288-byte header window")
	}

	if !bytesEqual(buf[0:32], magic[:]) {
		return nil, ErrBadMagic
	}

	meta := &FileMetadata{}

	var a1, a2 int
	if buf[32] == '3' {
		meta.Format = Bit64
		a2 = 4
	} else {
		meta.Format = Bit32
	}
	if buf[35] == '3' {
		a1 = 4
	}
	total := a1 + a2

	if buf[37] == 0x01 {
		meta.Endian = LittleEndian
	} else {
		meta.Endian = BigEndian
	}

	switch buf[39] {
	case '1':
		meta.Platform = PlatformUnix
	case '2':
		meta.Platform = PlatformWindows
	default:
		meta.Platform = PlatformUnknown
	}

	meta.Encoding = encodingName(buf[70])
	meta.codec = resolveCodec(meta.Encoding)

	headerLength, err := readU32(buf, 196+a1, meta.Endian)
	if err != nil {
		return nil, errors.Wrap(err, "reading header_length")
	}
	meta.HeaderLength = int(headerLength)

	if meta.HeaderLength > len(buf) {
		rest := make([]byte, meta.HeaderLength-len(buf))
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, errors.Wrap(ErrTruncated, "reading header extension")
		}
		buf = append(buf, rest...)
	} else if meta.HeaderLength < len(buf) {
		buf = buf[:meta.HeaderLength]
	}

	meta.DatasetName, err = readFixedString(buf, 92, 64, meta.codec)
	if err != nil {
		return nil, errors.Wrap(err, "reading dataset_name")
	}
	meta.FileType, err = readFixedString(buf, 156, 8, meta.codec)
	if err != nil {
		return nil, errors.Wrap(err, "reading file_type")
	}

	createdSecs, err := readFloat64(buf, 164+a1, meta.Endian)
	if err != nil {
		return nil, errors.Wrap(err, "reading date_created")
	}
	meta.DateCreated = sasSecondsToTime(createdSecs)

	modifiedSecs, err := readFloat64(buf, 172+a1, meta.Endian)
	if err != nil {
		return nil, errors.Wrap(err, "reading date_modified")
	}
	meta.DateModified = sasSecondsToTime(modifiedSecs)

	pageLength, err := readU32(buf, 200+a1, meta.Endian)
	if err != nil {
		return nil, errors.Wrap(err, "reading page_length")
	}
	meta.PageLength = int(pageLength)

	pageCount, err := readU32(buf, 204+a1, meta.Endian)
	if err != nil {
		return nil, errors.Wrap(err, "reading page_count")
	}
	meta.PageCount = int(pageCount)

	meta.SASRelease, err = readFixedString(buf, 216+total, 8, meta.codec)
	if err != nil {
		return nil, errors.Wrap(err, "reading sas_release")
	}
	meta.SASServerType, err = readFixedString(buf, 224+total, 16, meta.codec)
	if err != nil {
		return nil, errors.Wrap(err, "reading sas_server_type")
	}
	meta.OSType, err = readFixedString(buf, 240+total, 16, meta.codec)
	if err != nil {
		return nil, errors.Wrap(err, "reading os_type")
	}

	if err := boundsCheck(buf, 272+total, 1); err != nil {
		return nil, errors.Wrap(err, "reading os_name presence byte")
	}
	if buf[272+total] != 0 {
		meta.OSName, err = readFixedString(buf, 272+total, 16, meta.codec)
	} else {
		meta.OSName, err = readFixedString(buf, 256+total, 16, meta.codec)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading os_name")
	}

	return meta, nil
}

// sasSecondsToTime converts a SAS-epoch seconds value to an instant. Unlike
// the datetime field decoder, header timestamps have no documented missing
// representation, so NaN (which should not occur here) degrades to the
// epoch itself rather than being treated as absent.
func sasSecondsToTime(secs float64) time.Time {
	if secs != secs { // NaN
		return sasEpoch
	}
	return sasEpoch.Add(time.Duration(roundHalfAwayFromZero(secs)) * time.Second)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
