package sas7bdat

import "github.com/pkg/errors"

// Page-type bitfield constants (§4.8). The upper byte carries mutually
// exclusive primary types; the lower byte carries modifier flags. HasDeleted
// and Extended share bit 0x0080, disambiguated by which primary type they
// modify (§9 open question 2).
const (
	pageTypeMeta                  uint16 = 0x0000
	pageTypeData                  uint16 = 0x0100
	pageTypeMix                   uint16 = 0x0200
	pageTypeAmd                   uint16 = 0x0400
	pageTypeMetadataContinuation  uint16 = 0x4000
	pageTypeSpecial               uint16 = 0x8000
	pageTypeHasDeletedOrExtended  uint16 = 0x0080
	pageTypeCompressed            uint16 = 0x1000
)

// pageHeader is the fixed-position triple read from every page.
type pageHeader struct {
	pageType       uint16
	blockCount     uint16
	subheaderCount uint16
}

func parsePageHeader(page []byte, format FormatWidth, e Endian) (pageHeader, error) {
	off := format.pageBitOffset()
	pt, err := readU16(page, off, e)
	if err != nil {
		return pageHeader{}, errors.Wrap(err, "reading page_type")
	}
	bc, err := readU16(page, off+2, e)
	if err != nil {
		return pageHeader{}, errors.Wrap(err, "reading block_count")
	}
	sc, err := readU16(page, off+4, e)
	if err != nil {
		return pageHeader{}, errors.Wrap(err, "reading subheader_count")
	}
	return pageHeader{pageType: pt, blockCount: bc, subheaderCount: sc}, nil
}

func (h pageHeader) isData() bool { return h.pageType&pageTypeData != 0 }
func (h pageHeader) isMix() bool  { return h.pageType&pageTypeMix != 0 }
func (h pageHeader) isMeta() bool { return h.pageType == pageTypeMeta }
func (h pageHeader) isAmd() bool  { return h.pageType == pageTypeAmd }
func (h pageHeader) isMetadataContinuation() bool {
	return h.pageType == pageTypeMetadataContinuation
}
func (h pageHeader) hasDeleted() bool {
	return h.isData() && h.pageType&pageTypeHasDeletedOrExtended != 0
}
func (h pageHeader) isExtended() bool {
	return h.isMix() && h.pageType&pageTypeHasDeletedOrExtended != 0
}
func (h pageHeader) isCompressed() bool { return h.pageType&pageTypeCompressed != 0 }

// carriesMetadata reports whether this page type is one the subheader
// decoder must walk (§4.7): AMD, Meta, MetadataContinuation, Mix, or
// Extended (Mix2).
func (h pageHeader) carriesMetadata() bool {
	return h.isAmd() || h.isMeta() || h.isMetadataContinuation() || h.isMix()
}

// PageKind is the closed set of page shapes the row enumerator handles.
type PageKind uint8

const (
	PageUnknown PageKind = iota
	PageData
	PageMix
	PageMeta
)

func classifyPageKind(h pageHeader) PageKind {
	switch {
	case h.isData():
		return PageData
	case h.isMix():
		return PageMix
	case h.isMeta():
		return PageMeta
	default:
		return PageUnknown
	}
}

// subheaderRegionEnd computes H (§4.7.3): the byte offset just past the
// packed subheader-descriptor region. align selects the always-on §4.7.3
// behavior (round up to an 8-byte boundary); the NoAlignCorrection escape
// hatch (§C.2) passes false to skip the rounding for files that need it.
func subheaderRegionEnd(format FormatWidth, subheaderCount uint16, align bool) int {
	h := format.pageBitOffset() + 8 + int(subheaderCount)*3*format.intWidth()
	if !align {
		return h
	}
	if rem := h % 8; rem != 0 {
		h += 8 - rem
	}
	return h
}

// enumerateRows extracts the row slices carried directly by a page (Data and
// Mix pages hold rows inline; Meta pages hold rows embedded inside opaque
// subheaders; Unknown pages hold none). rowsRemaining bounds how many more
// rows the caller still wants across the whole file.
func enumerateRows(
	page []byte,
	h pageHeader,
	format FormatWidth,
	endian Endian,
	rowLength int,
	mixRowCount int,
	rowsRemaining int,
	comp compression,
	align bool,
) ([][]byte, error) {
	if rowLength <= 0 || rowsRemaining <= 0 {
		return nil, nil
	}
	switch classifyPageKind(h) {
	case PageData:
		return sliceRows(page, format.pageBitOffset()+8, int(h.blockCount), rowLength, rowsRemaining), nil
	case PageMix:
		start := subheaderRegionEnd(format, h.subheaderCount, align)
		count := mixRowCount
		if rowsRemaining < count {
			count = rowsRemaining
		}
		return sliceRows(page, start, count, rowLength, rowsRemaining), nil
	case PageMeta:
		return enumerateMetaRows(page, h, format, endian, rowLength, rowsRemaining, comp)
	default:
		log.WithError(errUnknownPageType).WithField("pageType", h.pageType).Debug("skipping page")
		return nil, nil
	}
}

func sliceRows(page []byte, start, count, rowLength, rowsRemaining int) [][]byte {
	if count > rowsRemaining {
		count = rowsRemaining
	}
	rows := make([][]byte, 0, count)
	pos := start
	for i := 0; i < count; i++ {
		if pos+rowLength > len(page) {
			break
		}
		rows = append(rows, page[pos:pos+rowLength])
		pos += rowLength
	}
	return rows
}

// enumerateMetaRows walks a Meta page's subheader descriptors looking for
// ones that carry an embedded row rather than metadata (§4.8, §9.3): the
// file must be compressed, the descriptor's flags must mark it as a
// compressed-subtype payload, and its signature must not classify as any
// known metadata subheader.
func enumerateMetaRows(
	page []byte,
	h pageHeader,
	format FormatWidth,
	endian Endian,
	rowLength int,
	rowsRemaining int,
	comp compression,
) ([][]byte, error) {
	if comp == compressionNone {
		return nil, nil
	}
	descs, err := readSubheaderDescriptors(page, h, format, endian)
	if err != nil {
		return nil, err
	}
	var rows [][]byte
	for _, d := range descs {
		if d.skip {
			continue
		}
		if !isEmbeddedDataDescriptor(d) {
			continue
		}
		sig, err := readSignature(page, d, format)
		if err != nil {
			continue
		}
		if classifySignature(sig, format) != subheaderUnknown {
			continue
		}
		body := page[d.offset : d.offset+d.length]
		var row []byte
		if len(body) >= rowLength {
			row = body[:rowLength]
		} else {
			scratch := make([]byte, rowLength)
			if err := decompressInto(comp, scratch, body); err != nil {
				return nil, err
			}
			row = scratch
		}
		rows = append(rows, row)
		if len(rows) >= rowsRemaining {
			break
		}
	}
	return rows, nil
}

// isEmbeddedDataDescriptor is the "carries a data row" predicate from §3:
// compression_flag in {COMPRESSED(4), 0} and subtype_flag == COMPRESSED_SUBTYPE(1).
func isEmbeddedDataDescriptor(d subheaderDescriptor) bool {
	return (d.compressionFlag == 4 || d.compressionFlag == 0) && d.subtypeFlag == 1
}
