package sas7bdat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPageHeader(page []byte, format FormatWidth, pageType, blockCount, subheaderCount uint16) {
	off := format.pageBitOffset()
	LittleEndian.order().PutUint16(page[off:], pageType)
	LittleEndian.order().PutUint16(page[off+2:], blockCount)
	LittleEndian.order().PutUint16(page[off+4:], subheaderCount)
}

func TestParsePageHeaderAndPredicates(t *testing.T) {
	page := make([]byte, 256)
	buildPageHeader(page, Bit32, pageTypeData|pageTypeHasDeletedOrExtended, 5, 0)

	h, err := parsePageHeader(page, Bit32, LittleEndian)
	require.NoError(t, err)
	require.True(t, h.isData())
	require.True(t, h.hasDeleted())
	require.False(t, h.isMix())
	require.False(t, h.isExtended())
}

func TestExtendedAndHasDeletedShareBitDisambiguatedByPrimary(t *testing.T) {
	page := make([]byte, 256)
	buildPageHeader(page, Bit32, pageTypeMix|pageTypeHasDeletedOrExtended, 0, 2)
	h, err := parsePageHeader(page, Bit32, LittleEndian)
	require.NoError(t, err)
	require.True(t, h.isExtended())
	require.False(t, h.hasDeleted())
}

func TestClassifyPageKind(t *testing.T) {
	require.Equal(t, PageData, classifyPageKind(pageHeader{pageType: pageTypeData}))
	require.Equal(t, PageMix, classifyPageKind(pageHeader{pageType: pageTypeMix}))
	require.Equal(t, PageMeta, classifyPageKind(pageHeader{pageType: pageTypeMeta}))
	require.Equal(t, PageUnknown, classifyPageKind(pageHeader{pageType: pageTypeAmd}))
}

func TestEnumerateRowsDataPage(t *testing.T) {
	page := make([]byte, 256)
	buildPageHeader(page, Bit32, pageTypeData, 3, 0)
	start := Bit32.pageBitOffset() + 8
	for i := 0; i < 3; i++ {
		page[start+i*8] = byte(i + 1)
	}
	rows, err := enumerateRows(page, pageHeader{pageType: pageTypeData, blockCount: 3}, Bit32, LittleEndian, 8, 0, 10, compressionNone, true)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, byte(2), rows[1][0])
}

func TestEnumerateRowsDataPageClampedByRowsRemaining(t *testing.T) {
	page := make([]byte, 256)
	buildPageHeader(page, Bit32, pageTypeData, 3, 0)
	rows, err := enumerateRows(page, pageHeader{pageType: pageTypeData, blockCount: 3}, Bit32, LittleEndian, 8, 0, 1, compressionNone, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestEnumerateRowsMixPage(t *testing.T) {
	page := make([]byte, 256)
	buildPageHeader(page, Bit32, pageTypeMix, 0, 1)
	h := pageHeader{pageType: pageTypeMix, subheaderCount: 1}
	start := subheaderRegionEnd(Bit32, 1, true)
	rows, err := enumerateRows(page, h, Bit32, LittleEndian, 10, 4, 100, compressionNone, true)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, 40, start) // H=36 rounds up to the 8-byte boundary
}

func TestEnumerateRowsUnknownPageYieldsNothing(t *testing.T) {
	page := make([]byte, 256)
	buildPageHeader(page, Bit32, pageTypeAmd, 0, 0)
	rows, err := enumerateRows(page, pageHeader{pageType: pageTypeAmd}, Bit32, LittleEndian, 8, 0, 10, compressionNone, true)
	require.NoError(t, err)
	require.Nil(t, rows)
}

func TestEnumerateMetaRowsUncompressedFileYieldsNothing(t *testing.T) {
	page, _ := buildMetaPage(pageTypeMeta, make([]byte, 20))
	h, err := parsePageHeader(page, Bit32, LittleEndian)
	require.NoError(t, err)
	rows, err := enumerateRows(page, h, Bit32, LittleEndian, 8, 0, 10, compressionNone, true)
	require.NoError(t, err)
	require.Nil(t, rows)
}

func TestEnumerateMetaRowsCompressedFileYieldsEmbeddedRow(t *testing.T) {
	rowLength := 8
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} // longer than rowLength, signature bytes unknown
	page, _ := buildMetaPage(pageTypeMeta, body)
	page[Bit32.pageBitOffset()+8+9] = 1 // subtype_flag = COMPRESSED_SUBTYPE
	h, err := parsePageHeader(page, Bit32, LittleEndian)
	require.NoError(t, err)

	rows, err := enumerateRows(page, h, Bit32, LittleEndian, rowLength, 0, 10, compressionRLE, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, body[:rowLength], rows[0])
}

func TestSubheaderRegionEndRoundsToEightByteBoundary(t *testing.T) {
	// H = 16+8+1*3*4 = 36, rounds up to 40.
	require.Equal(t, 40, subheaderRegionEnd(Bit32, 1, true))
	// H = 16+8+2*3*4 = 48, already aligned.
	require.Equal(t, 48, subheaderRegionEnd(Bit32, 2, true))
}
