package sas7bdat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadU16LittleEndian(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03}
	v, err := readU16(buf, 0, LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0201), v)
}

func TestReadU16BigEndian(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03}
	v, err := readU16(buf, 0, BigEndian)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), v)
}

func TestReadU32AndU64(t *testing.T) {
	buf := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	v32, err := readU32(buf, 0, LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v32)

	v64, err := readU64(buf, 0, LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0000000200000001), v64)
}

func TestReadUintWidthDispatches(t *testing.T) {
	buf := []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	v, err := readUintWidth(buf, 0, 1, LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFF), v)

	v, err = readUintWidth(buf, 0, 8, LittleEndian)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFF), v)

	_, err = readUintWidth(buf, 0, 3, LittleEndian)
	require.ErrorIs(t, err, ErrBadField)
}

func TestReadFloat64BitCast(t *testing.T) {
	buf := make([]byte, 8)
	bits := math.Float64bits(86400.0)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	f, err := readFloat64(buf, 0, LittleEndian)
	require.NoError(t, err)
	require.Equal(t, 86400.0, f)
}

func TestReadFixedStringTrimsAndDecodes(t *testing.T) {
	raw := []byte("  hello   \x00\x00")
	v, err := readFixedString(raw, 0, len(raw), nil)
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestReadFixedStringAllBlank(t *testing.T) {
	raw := []byte("        ")
	v, err := readFixedString(raw, 0, len(raw), nil)
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestBoundsCheckRejectsOverrun(t *testing.T) {
	buf := make([]byte, 4)
	_, err := readU64(buf, 0, LittleEndian)
	require.ErrorIs(t, err, ErrTruncated)
}
