package sas7bdat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecompressNoneStraightCopy(t *testing.T) {
	dst := make([]byte, 4)
	require.NoError(t, decompressNone(dst, []byte{1, 2, 3}))
	require.Equal(t, []byte{1, 2, 3, 0}, dst)
}

func TestDecompressNoneFailsWhenSrcTooLarge(t *testing.T) {
	dst := make([]byte, 2)
	err := decompressNone(dst, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadCodec)
}

// S2 from the conformance scenarios: COPY1 with L=1 literal "A" (0x80 0x41),
// then INSERT_ZERO2 with L=3 (0xF1), into a 4-byte destination.
func TestDecompressRLECopy1ThenInsertZero2(t *testing.T) {
	dst := make([]byte, 4)
	src := []byte{0x80, 0x41, 0xF1}
	require.NoError(t, decompressRLE(dst, src))
	require.Equal(t, []byte{0x41, 0x00, 0x00, 0x00}, dst)
}

func TestDecompressRLECopy64(t *testing.T) {
	// cmd nibble 0x0, n=0, next byte = 0 => L = 0<<8 + 0 + 64 = 64 literal bytes.
	src := make([]byte, 2+64)
	src[0] = 0x00
	src[1] = 0x00
	for i := 0; i < 64; i++ {
		src[2+i] = byte(i)
	}
	dst := make([]byte, 64)
	require.NoError(t, decompressRLE(dst, src))
	for i := 0; i < 64; i++ {
		require.Equal(t, byte(i), dst[i])
	}
}

func TestDecompressRLEInsertByte18(t *testing.T) {
	// cmd 0x4, n=0, b0=0, b1=fill byte => L = 0 + 0 + 18 = 18 copies of b1.
	src := []byte{0x40, 0x00, 0x5A}
	dst := make([]byte, 18)
	require.NoError(t, decompressRLE(dst, src))
	for _, b := range dst {
		require.Equal(t, byte(0x5A), b)
	}
}

func TestDecompressRLEZeroFillsResidualTail(t *testing.T) {
	dst := make([]byte, 10)
	for i := range dst {
		dst[i] = 0xFF
	}
	// COPY1 with n=0 writes a single literal byte, leaving 9 residual bytes.
	src := []byte{0x80, 0x41}
	require.NoError(t, decompressRLE(dst, src))
	require.Equal(t, byte(0x41), dst[0])
	for i := 1; i < 10; i++ {
		require.Equal(t, byte(0), dst[i])
	}
}

// S3 from the conformance scenarios: back-reference overlap. dst already
// holds "ABCD" at the front; a command with offset=3, count=6 starting at
// output position 4 must replay the 3-byte pattern "BCD" twice.
func TestDecompressBackrefOverlap(t *testing.T) {
	dst := make([]byte, 10)
	copy(dst, "ABCD....")
	out := 4
	require.NoError(t, copyBackref(dst, &out, 3, 6))
	require.Equal(t, "BCDBCD", string(dst[4:10]))
	require.Equal(t, 10, out)
}

func TestDecompressBackrefOffsetExceedsPositionIsFatal(t *testing.T) {
	dst := make([]byte, 10)
	out := 2
	err := copyBackref(dst, &out, 5, 3)
	require.ErrorIs(t, err, ErrBadCodec)
}

func TestDecompressRDCLiteralAndShortRLE(t *testing.T) {
	// Control word: bit15=0 (literal 'A'), bit14=1 (short RLE).
	// cmd=0 cnt=0 => write next byte 3 times.
	src := []byte{
		0x40, 0x00, // control word: 0100 0000 0000 0000
		'A',        // literal byte for bit 15
		0x00, 'B', // marker (cmd=0,cnt=0), fill byte 'B' -> BBB
	}
	dst := make([]byte, 4)
	require.NoError(t, decompressRDC(dst, src))
	require.Equal(t, []byte("ABBB"), dst)
}

func TestDecompressRDCZeroFillsResidualTail(t *testing.T) {
	dst := make([]byte, 8)
	for i := range dst {
		dst[i] = 0xFF
	}
	src := []byte{0x00, 0x00, 'x'} // control word all-literal, one literal byte
	require.NoError(t, decompressRDC(dst, src))
	require.Equal(t, byte('x'), dst[0])
	for i := 1; i < 8; i++ {
		require.Equal(t, byte(0), dst[i])
	}
}

func TestDecompressUnknownSchemeIsFatal(t *testing.T) {
	err := decompressInto(compression(99), make([]byte, 1), []byte{0})
	require.ErrorIs(t, err, ErrBadCodec)
}
