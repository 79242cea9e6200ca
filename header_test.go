package sas7bdat

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildHeader assembles a minimal, valid 288-byte Bit32 little-endian header
// with a fixed dataset name, encoding byte, page geometry, and timestamps.
func buildHeader(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 288)
	copy(buf[0:32], magic[:])
	buf[32] = '2' // Bit32
	buf[35] = '2' // A1 = 0
	buf[37] = 0x01 // little endian
	buf[39] = '1'  // unix
	buf[70] = 29   // ISO-8859-1

	putStr(buf, 92, 64, "MYDATA")
	putStr(buf, 156, 8, "DATA")

	LittleEndian.order().PutUint64(buf[164:172], math.Float64bits(0)) // date_created = epoch
	LittleEndian.order().PutUint64(buf[172:180], math.Float64bits(86400))

	LittleEndian.order().PutUint32(buf[196:200], 288) // header_length
	LittleEndian.order().PutUint32(buf[200:204], 65536) // page_length
	LittleEndian.order().PutUint32(buf[204:208], 3)     // page_count

	putStr(buf, 216, 8, "9.4")
	putStr(buf, 224, 16, "XA64")
	putStr(buf, 240, 16, "LINUX")
	// os_name presence byte at 272 left zero -> read from 256 instead.
	putStr(buf, 256, 16, "LINUX_HOST")

	return buf
}

func putStr(buf []byte, off, width int, s string) {
	for i := 0; i < width; i++ {
		buf[off+i] = ' '
	}
	copy(buf[off:off+width], s)
}

func TestParseHeaderBasicFields(t *testing.T) {
	buf := buildHeader(t)
	meta, err := parseHeader(bytes.NewReader(buf))
	require.NoError(t, err)

	require.Equal(t, Bit32, meta.Format)
	require.Equal(t, LittleEndian, meta.Endian)
	require.Equal(t, PlatformUnix, meta.Platform)
	require.Equal(t, "ISO-8859-1", meta.Encoding)
	require.Equal(t, "MYDATA", meta.DatasetName)
	require.Equal(t, "DATA", meta.FileType)
	require.Equal(t, sasEpoch, meta.DateCreated)
	require.Equal(t, sasEpoch.AddDate(0, 0, 1), meta.DateModified)
	require.Equal(t, 288, meta.HeaderLength)
	require.Equal(t, 65536, meta.PageLength)
	require.Equal(t, 3, meta.PageCount)
	require.Equal(t, "9.4", meta.SASRelease)
	require.Equal(t, "XA64", meta.SASServerType)
	require.Equal(t, "LINUX", meta.OSType)
	require.Equal(t, "LINUX_HOST", meta.OSName)
}

func TestParseHeaderBadMagicIsFatal(t *testing.T) {
	buf := make([]byte, 288)
	_, err := parseHeader(bytes.NewReader(buf))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestParseHeaderTruncatedIsFatal(t *testing.T) {
	_, err := parseHeader(bytes.NewReader(make([]byte, 100)))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestParseHeaderBit64UsesTotalAlign(t *testing.T) {
	buf := make([]byte, 512) // the full header_length declared below
	copy(buf[0:32], magic[:])
	buf[32] = '3' // Bit64: A2 = 4
	buf[35] = '3' // A1 = 4, total = 8
	buf[37] = 0x01
	buf[39] = '2'
	buf[70] = 20

	LittleEndian.order().PutUint32(buf[200:204], 512) // header_length @ 196+4
	LittleEndian.order().PutUint32(buf[204:208], 1024)
	LittleEndian.order().PutUint32(buf[208:212], 7)
	putStr(buf, 224, 8, "9.4")

	meta, err := parseHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, Bit64, meta.Format)
	require.Equal(t, PlatformWindows, meta.Platform)
	require.Equal(t, "UTF-8", meta.Encoding)
	require.Equal(t, 512, meta.HeaderLength)
	require.Equal(t, 1024, meta.PageLength)
	require.Equal(t, 7, meta.PageCount)
	require.Equal(t, "9.4", meta.SASRelease)
}

func TestParseHeaderExtendsBeyond288(t *testing.T) {
	buf := buildHeader(t)
	LittleEndian.order().PutUint32(buf[196:200], 320)
	extended := append(buf, make([]byte, 32)...)
	copy(extended[300:308], []byte("EXTRA123"))

	meta, err := parseHeader(bytes.NewReader(extended))
	require.NoError(t, err)
	require.Equal(t, 320, meta.HeaderLength)
}

func TestParseHeaderOSNamePreferredFieldWhenPresent(t *testing.T) {
	buf := buildHeader(t)
	buf[272] = 1
	putStr(buf, 272, 16, "PREFERRED_HOST")

	meta, err := parseHeader(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, "PREFERRED_HOST", meta.OSName)
}
