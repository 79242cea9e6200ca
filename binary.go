package sas7bdat

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/text/encoding"
)

// Endian identifies the byte order a SAS7BDAT file was written with.
type Endian int

const (
	// LittleEndian files declare byte 37 of the header as 0x01.
	LittleEndian Endian = iota
	// BigEndian files declare any other value at byte 37.
	BigEndian
)

func (e Endian) order() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (e Endian) String() string {
	if e == LittleEndian {
		return "little"
	}
	return "big"
}

// boundsCheck returns ErrTruncated, wrapped with the offending window, if
// [off, off+length) does not fit inside buf.
func boundsCheck(buf []byte, off, length int) error {
	if off < 0 || length < 0 || off+length > len(buf) {
		return errors.Wrapf(ErrTruncated, "window [%d:%d) exceeds buffer of length %d", off, off+length, len(buf))
	}
	return nil
}

// readUnsigned reads a fixed-width unsigned integer of the type parameter's
// own width (1, 2, 4, or 8 bytes, per constraints.Unsigned's instantiations
// used in this package) at the given endianness.
func readUnsigned[T constraints.Unsigned](buf []byte, off int, e Endian) (T, error) {
	var zero T
	width := widthOf(zero)
	if err := boundsCheck(buf, off, width); err != nil {
		return zero, err
	}
	bo := e.order()
	switch width {
	case 1:
		return T(buf[off]), nil
	case 2:
		return T(bo.Uint16(buf[off : off+2])), nil
	case 4:
		return T(bo.Uint32(buf[off : off+4])), nil
	case 8:
		return T(bo.Uint64(buf[off : off+8])), nil
	default:
		return zero, errors.Errorf("unsupported integer width %d", width)
	}
}

// widthOf reports the byte width of an unsigned integer type by switching on
// its concrete type rather than using unsafe.Sizeof. Types other than
// uint8/uint16/uint32/uint64 (uint, uintptr) report 8.
func widthOf[T constraints.Unsigned](zero T) int {
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	case uint64:
		return 8
	default:
		return 8
	}
}

// readU16 reads an unsigned 16-bit integer at off.
func readU16(buf []byte, off int, e Endian) (uint16, error) {
	return readUnsigned[uint16](buf, off, e)
}

// readU32 reads an unsigned 32-bit integer at off.
func readU32(buf []byte, off int, e Endian) (uint32, error) {
	return readUnsigned[uint32](buf, off, e)
}

// readU64 reads an unsigned 64-bit integer at off.
func readU64(buf []byte, off int, e Endian) (uint64, error) {
	return readUnsigned[uint64](buf, off, e)
}

// readUintWidth reads an unsigned integer whose width (1, 2, 4, or 8) is
// only known at run time, as is the case for every subheader-relative offset
// and length in the page format (width = the file's integer_width).
func readUintWidth(buf []byte, off, width int, e Endian) (uint64, error) {
	switch width {
	case 1:
		v, err := readUnsigned[uint8](buf, off, e)
		return uint64(v), err
	case 2:
		v, err := readU16(buf, off, e)
		return uint64(v), err
	case 4:
		v, err := readU32(buf, off, e)
		return uint64(v), err
	case 8:
		return readU64(buf, off, e)
	default:
		return 0, errors.Wrapf(ErrBadField, "unsupported integer width %d", width)
	}
}

// readFloat64 reads an IEEE-754 double by first reading a 64-bit integer at
// the declared endianness, then bit-casting it. This matches the on-disk
// representation regardless of host float endianness.
func readFloat64(buf []byte, off int, e Endian) (float64, error) {
	bits, err := readU64(buf, off, e)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// readFixedString reads a width-byte window, trims trailing 0x00/0x20 then
// leading 0x20, and decodes the remainder with dec. A nil decoder leaves the
// bytes as-is (interpreted as already being valid UTF-8/ASCII).
func readFixedString(buf []byte, off, width int, dec *encoding.Decoder) (string, error) {
	if err := boundsCheck(buf, off, width); err != nil {
		return "", err
	}
	raw := buf[off : off+width]
	trimmed := trimFixedWidth(raw)
	if dec == nil || len(trimmed) == 0 {
		return string(trimmed), nil
	}
	out, err := dec.Bytes(trimmed)
	if err != nil {
		return "", errors.Wrap(err, "decoding fixed-width string")
	}
	return string(out), nil
}

// trimFixedWidth trims trailing 0x00/0x20 bytes, then leading 0x20 bytes.
func trimFixedWidth(raw []byte) []byte {
	end := len(raw)
	for end > 0 && (raw[end-1] == 0x00 || raw[end-1] == 0x20) {
		end--
	}
	start := 0
	for start < end && raw[start] == 0x20 {
		start++
	}
	return raw[start:end]
}
