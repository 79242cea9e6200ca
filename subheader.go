package sas7bdat

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// subheaderKind is the closed set of subheader payload types the metadata
// walk recognizes by signature (§4.7.2).
type subheaderKind uint8

const (
	subheaderUnknown subheaderKind = iota
	subheaderRowSize
	subheaderColumnSize
	subheaderSubheaderCounts
	subheaderColumnText
	subheaderColumnName
	subheaderColumnAttributes
	subheaderFormatAndLabel
	subheaderColumnList
)

// subheaderSignatures maps every documented 32-bit and 64-bit byte sequence
// to its subheader kind. A single table suffices because a given file only
// ever produces signatures at its own integer_width.
var subheaderSignatures = map[string]subheaderKind{
	"\xF7\xF7\xF7\xF7":                 subheaderRowSize,
	"\x00\x00\x00\x00\xF7\xF7\xF7\xF7": subheaderRowSize,
	"\xF7\xF7\xF7\xF7\x00\x00\x00\x00": subheaderRowSize,
	"\xF7\xF7\xF7\xF7\xFF\xFF\xFB\xFE": subheaderRowSize,
	"\xFF\xFF\xFB\xFE\xF7\xF7\xF7\xF7": subheaderRowSize,

	"\xF6\xF6\xF6\xF6":                 subheaderColumnSize,
	"\x00\x00\x00\x00\xF6\xF6\xF6\xF6": subheaderColumnSize,
	"\xF6\xF6\xF6\xF6\x00\x00\x00\x00": subheaderColumnSize,
	"\xF6\xF6\xF6\xF6\xFF\xFF\xFB\xFE": subheaderColumnSize,
	"\xFF\xFF\xFB\xFE\xF6\xF6\xF6\xF6": subheaderColumnSize,

	"\x00\xFC\xFF\xFF":                 subheaderSubheaderCounts,
	"\xFF\xFF\xFC\x00":                 subheaderSubheaderCounts,
	"\x00\xFC\xFF\xFF\xFF\xFF\xFF\xFF": subheaderSubheaderCounts,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFC\x00": subheaderSubheaderCounts,

	"\xFD\xFF\xFF\xFF":                 subheaderColumnText,
	"\xFF\xFF\xFF\xFD":                 subheaderColumnText,
	"\xFD\xFF\xFF\xFF\xFF\xFF\xFF\xFF": subheaderColumnText,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFD": subheaderColumnText,

	"\xFF\xFF\xFF\xFF":                 subheaderColumnName,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF": subheaderColumnName,

	"\xFC\xFF\xFF\xFF":                 subheaderColumnAttributes,
	"\xFF\xFF\xFF\xFC":                 subheaderColumnAttributes,
	"\xFC\xFF\xFF\xFF\xFF\xFF\xFF\xFF": subheaderColumnAttributes,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFC": subheaderColumnAttributes,

	"\xFE\xFB\xFF\xFF":                 subheaderFormatAndLabel,
	"\xFF\xFF\xFB\xFE":                 subheaderFormatAndLabel,
	"\xFE\xFB\xFF\xFF\xFF\xFF\xFF\xFF": subheaderFormatAndLabel,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFB\xFE": subheaderFormatAndLabel,

	"\xFE\xFF\xFF\xFF":                 subheaderColumnList,
	"\xFF\xFF\xFF\xFE":                 subheaderColumnList,
	"\xFE\xFF\xFF\xFF\xFF\xFF\xFF\xFF": subheaderColumnList,
	"\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFE": subheaderColumnList,
}

func classifySignature(sig []byte, _ FormatWidth) subheaderKind {
	if k, ok := subheaderSignatures[string(sig)]; ok {
		return k
	}
	return subheaderUnknown
}

// subheaderDescriptor is one entry of the packed pointer table at the start
// of a Meta/Mix/Amd/MetadataContinuation page (§4.7, §3).
type subheaderDescriptor struct {
	offset          int
	length          int
	compressionFlag byte
	subtypeFlag     byte
	skip            bool
}

const truncatedSubheaderFlag = 1

func readSubheaderDescriptors(page []byte, h pageHeader, format FormatWidth, endian Endian) ([]subheaderDescriptor, error) {
	w := format.intWidth()
	stride := 3 * w
	base := format.pageBitOffset() + 8

	descs := make([]subheaderDescriptor, 0, h.subheaderCount)
	for i := 0; i < int(h.subheaderCount); i++ {
		pos := base + i*stride
		off, err := readUintWidth(page, pos, w, endian)
		if err != nil {
			return nil, errors.Wrapf(err, "reading subheader descriptor %d offset", i)
		}
		length, err := readUintWidth(page, pos+w, w, endian)
		if err != nil {
			return nil, errors.Wrapf(err, "reading subheader descriptor %d length", i)
		}
		if err := boundsCheck(page, pos+2*w, 2); err != nil {
			return nil, errors.Wrapf(err, "reading subheader descriptor %d flags", i)
		}
		d := subheaderDescriptor{
			offset:          int(off),
			length:          int(length),
			compressionFlag: page[pos+2*w],
			subtypeFlag:     page[pos+2*w+1],
		}
		d.skip = d.length == 0 || d.compressionFlag == truncatedSubheaderFlag
		descs = append(descs, d)
	}
	return descs, nil
}

func readSignature(page []byte, d subheaderDescriptor, format FormatWidth) ([]byte, error) {
	w := format.intWidth()
	if err := boundsCheck(page, d.offset, w); err != nil {
		return nil, err
	}
	return page[d.offset : d.offset+w], nil
}

// metadataState accumulates per-column positional arrays across whatever
// order their owning subheaders appear in, and the text pool they cite.
type metadataState struct {
	meta *FileMetadata

	textPool []string

	names   []string
	labels  []string
	formats []string

	dataOffsets  []int
	dataLengths  []int
	storageKinds []StorageKind
}

// parseSubheaders walks pages returned by pages (read from just after the
// header) until a pure data page or a processed mix page ends metadata
// extraction, then assembles the column schema (§4.7, §4.7.4).
func parseSubheaders(pages func() ([]byte, error), format FormatWidth, endian Endian, meta *FileMetadata, align bool) ([]*ColumnInfo, error) {
	st := &metadataState{meta: meta}

	for {
		page, err := pages()
		if err != nil {
			return nil, err
		}
		h, err := parsePageHeader(page, format, endian)
		if err != nil {
			return nil, err
		}
		if h.isData() {
			break
		}
		if !h.carriesMetadata() {
			log.WithError(errUnknownPageType).WithField("pageType", h.pageType).Debug("skipping page")
			continue
		}
		if err := processPageSubheaders(st, page, h, format, endian); err != nil {
			return nil, err
		}
		if h.isMix() {
			if meta.MixPageRowCount == 0 {
				meta.MixPageRowCount = computeMixPageRowCount(format, h, meta.PageLength, meta.RowLength, align)
			}
			break
		}
	}

	return assembleColumns(st), nil
}

func processPageSubheaders(st *metadataState, page []byte, h pageHeader, format FormatWidth, endian Endian) error {
	descs, err := readSubheaderDescriptors(page, h, format, endian)
	if err != nil {
		return err
	}
	for _, d := range descs {
		if d.skip {
			continue
		}
		sig, err := readSignature(page, d, format)
		if err != nil {
			return errors.Wrap(err, "reading subheader signature")
		}
		switch classifySignature(sig, format) {
		case subheaderRowSize:
			if err := handleRowSize(st, page, d, format, endian); err != nil {
				return errors.Wrap(err, "parsing RowSize subheader")
			}
		case subheaderColumnSize:
			if err := handleColumnSize(st, page, d, format, endian); err != nil {
				return errors.Wrap(err, "parsing ColumnSize subheader")
			}
		case subheaderColumnText:
			if err := handleColumnText(st, page, d, format, endian); err != nil {
				return errors.Wrap(err, "parsing ColumnText subheader")
			}
		case subheaderColumnName:
			if err := handleColumnName(st, page, d, format, endian); err != nil {
				return errors.Wrap(err, "parsing ColumnName subheader")
			}
		case subheaderColumnAttributes:
			if err := handleColumnAttributes(st, page, d, format, endian); err != nil {
				return errors.Wrap(err, "parsing ColumnAttributes subheader")
			}
		case subheaderFormatAndLabel:
			if err := handleFormatAndLabel(st, page, d, format, endian); err != nil {
				return errors.Wrap(err, "parsing FormatAndLabel subheader")
			}
		case subheaderColumnList, subheaderSubheaderCounts:
			// structurally recognized, semantically ignored.
		default:
			// Unknown: on Meta pages this may carry an embedded data row,
			// handled separately by the page decoder, not the metadata walk.
			log.WithError(errUnknownSubheader).WithField("offset", d.offset).Debug("skipping subheader")
		}
	}
	return nil
}

func handleRowSize(st *metadataState, page []byte, d subheaderDescriptor, format FormatWidth, endian Endian) error {
	w := format.intWidth()
	lcsOff, lcpOff := 354, 378
	if format == Bit64 {
		lcsOff, lcpOff = 682, 706
	}

	rowLength, err := readUintWidth(page, d.offset+5*w, w, endian)
	if err != nil {
		return errors.Wrap(err, "row_length")
	}
	rowCount, err := readUintWidth(page, d.offset+6*w, w, endian)
	if err != nil {
		return errors.Wrap(err, "row_count")
	}
	colP1, err := readUintWidth(page, d.offset+9*w, w, endian)
	if err != nil {
		return errors.Wrap(err, "col_count_p1")
	}
	colP2, err := readUintWidth(page, d.offset+10*w, w, endian)
	if err != nil {
		return errors.Wrap(err, "col_count_p2")
	}
	mixRC, err := readUintWidth(page, d.offset+15*w, w, endian)
	if err != nil {
		return errors.Wrap(err, "mix_page_row_count")
	}
	lcs, err := readUintWidth(page, d.offset+lcsOff, 2, endian)
	if err != nil {
		return errors.Wrap(err, "lcs")
	}
	lcp, err := readUintWidth(page, d.offset+lcpOff, 2, endian)
	if err != nil {
		return errors.Wrap(err, "lcp")
	}

	st.meta.RowLength = int(rowLength)
	st.meta.RowCount = int(rowCount)
	st.meta.colCountP1 = int(colP1)
	st.meta.colCountP2 = int(colP2)
	st.meta.MixPageRowCount = int(mixRC)
	st.meta.lcs = int(lcs)
	st.meta.lcp = int(lcp)
	return nil
}

func handleColumnSize(st *metadataState, page []byte, d subheaderDescriptor, format FormatWidth, endian Endian) error {
	w := format.intWidth()
	cc, err := readUintWidth(page, d.offset+w, w, endian)
	if err != nil {
		return err
	}
	st.meta.ColumnCount = int(cc)
	if st.meta.colCountP1+st.meta.colCountP2 != st.meta.ColumnCount {
		log.Warnf("column count mismatch: %d + %d != %d", st.meta.colCountP1, st.meta.colCountP2, st.meta.ColumnCount)
	}
	return nil
}

// handleColumnText follows the teacher's arithmetic exactly: the text block
// occupies the descriptor's own length minus one integer width, starting
// right after that leading integer, rather than a separately stored u16
// block length.
func handleColumnText(st *metadataState, page []byte, d subheaderDescriptor, format FormatWidth, endian Endian) error {
	w := format.intWidth()
	start := d.offset + w
	blockLen := d.length - w
	if blockLen < 0 {
		blockLen = 0
	}
	if err := boundsCheck(page, start, blockLen); err != nil {
		return err
	}
	raw := page[start : start+blockLen]

	decoded, err := decodeTextBlock(raw, st.meta.codec)
	if err != nil {
		return errors.Wrap(err, "decoding text block")
	}
	st.textPool = append(st.textPool, decoded)

	if len(st.textPool) != 1 {
		return nil
	}

	if bytes.Contains(raw, []byte(rleSignature)) {
		st.meta.Compression = compressionRLE
	} else if bytes.Contains(raw, []byte(rdcSignature)) {
		st.meta.Compression = compressionRDC
	}

	c := d.offset + 16
	if format == Bit64 {
		c += 4
	}
	literal, err := readFixedString(page, c, 8, nil)
	if err != nil {
		return errors.Wrap(err, "reading compression literal")
	}

	switch {
	case literal == "":
		st.meta.lcs = 0
		proc, err := readFixedTextOfLength(page, c+16, st.meta.lcp)
		if err != nil {
			return err
		}
		st.meta.CreatorProc = proc
	case literal == rleSignature:
		proc, err := readFixedTextOfLength(page, c+24, st.meta.lcp)
		if err != nil {
			return err
		}
		st.meta.CreatorProc = proc
	case st.meta.lcs > 0:
		st.meta.lcp = 0
		creator, err := readFixedTextOfLength(page, c, st.meta.lcs)
		if err != nil {
			return err
		}
		st.meta.Creator = creator
	}
	return nil
}

func readFixedTextOfLength(page []byte, off, length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	return readFixedString(page, off, length, nil)
}

func decodeTextBlock(raw []byte, dec *encoding.Decoder) (string, error) {
	if dec == nil || len(raw) == 0 {
		return string(raw), nil
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func handleColumnName(st *metadataState, page []byte, d subheaderDescriptor, format FormatWidth, endian Endian) error {
	w := format.intWidth()
	base := d.offset + w
	count := (d.length - 2*w - 12) / 8
	for i := 0; i < count; i++ {
		entry := base + 8*(i+1)
		idx, err := readUintWidth(page, entry, 2, endian)
		if err != nil {
			return err
		}
		nameOff, err := readUintWidth(page, entry+2, 2, endian)
		if err != nil {
			return err
		}
		nameLen, err := readUintWidth(page, entry+4, 2, endian)
		if err != nil {
			return err
		}
		st.names = append(st.names, textPoolSubstring(st.textPool, int(idx), int(nameOff), int(nameLen)))
	}
	return nil
}

func handleColumnAttributes(st *metadataState, page []byte, d subheaderDescriptor, format FormatWidth, endian Endian) error {
	w := format.intWidth()
	stride := w + 8
	count := (d.length - 2*w - 12) / stride
	base := d.offset + w + 8
	for i := 0; i < count; i++ {
		entry := base + i*stride
		dataOffset, err := readUintWidth(page, entry, w, endian)
		if err != nil {
			return err
		}
		dataLength, err := readUintWidth(page, entry+w, 4, endian)
		if err != nil {
			return err
		}
		if err := boundsCheck(page, entry+w+6, 1); err != nil {
			return err
		}
		storage := StorageString
		if page[entry+w+6] == 1 {
			storage = StorageNumber
		}
		st.dataOffsets = append(st.dataOffsets, int(dataOffset))
		st.dataLengths = append(st.dataLengths, int(dataLength))
		st.storageKinds = append(st.storageKinds, storage)
	}
	return nil
}

func handleFormatAndLabel(st *metadataState, page []byte, d subheaderDescriptor, format FormatWidth, endian Endian) error {
	w := format.intWidth()
	base := d.offset + 3*w

	formatIdx, err := readUintWidth(page, base+22, 2, endian)
	if err != nil {
		return err
	}
	formatOff, err := readUintWidth(page, base+24, 2, endian)
	if err != nil {
		return err
	}
	formatLen, err := readUintWidth(page, base+26, 2, endian)
	if err != nil {
		return err
	}
	labelIdx, err := readUintWidth(page, base+28, 2, endian)
	if err != nil {
		return err
	}
	labelOff, err := readUintWidth(page, base+30, 2, endian)
	if err != nil {
		return err
	}
	labelLen, err := readUintWidth(page, base+32, 2, endian)
	if err != nil {
		return err
	}

	st.formats = append(st.formats, textPoolSubstring(st.textPool, int(formatIdx), int(formatOff), int(formatLen)))
	st.labels = append(st.labels, textPoolSubstring(st.textPool, int(labelIdx), int(labelOff), int(labelLen)))
	return nil
}

// textPoolSubstring implements the bounded extraction rule from §4.7.1: an
// invalid pool index or an offset past the end of the block yields an empty
// string; an overlong length is truncated; the result is trimmed.
func textPoolSubstring(pool []string, idx, offset, length int) string {
	if idx < 0 || idx >= len(pool) {
		return ""
	}
	s := pool[idx]
	if offset < 0 || offset >= len(s) {
		return ""
	}
	end := offset + length
	if end > len(s) || end < offset {
		end = len(s)
	}
	return string(trimFixedWidth([]byte(s[offset:end])))
}

func computeMixPageRowCount(format FormatWidth, h pageHeader, pageLength, rowLength int, align bool) int {
	if rowLength <= 0 {
		return 0
	}
	dataArea := pageLength - subheaderRegionEnd(format, h.subheaderCount, align)
	if dataArea < 0 {
		return 0
	}
	return dataArea / rowLength
}

// assembleColumns produces the final ColumnInfo sequence (§4.7.4), filling
// in documented defaults for any column missing positional data.
func assembleColumns(st *metadataState) []*ColumnInfo {
	cols := make([]*ColumnInfo, st.meta.ColumnCount)
	for i := 0; i < st.meta.ColumnCount; i++ {
		c := &ColumnInfo{Index: i}

		if i < len(st.names) {
			c.Name = st.names[i]
		} else {
			c.Name = fmt.Sprintf("Column%d", i+1)
		}
		if i < len(st.labels) {
			c.Label = st.labels[i]
		}
		if i < len(st.formats) {
			c.Format = st.formats[i]
		}

		storage := StorageUnknown
		if i < len(st.storageKinds) {
			storage = st.storageKinds[i]
		}
		if i < len(st.dataOffsets) {
			c.Offset = st.dataOffsets[i]
		}
		if i < len(st.dataLengths) {
			c.Length = st.dataLengths[i]
		}

		c.LogicalType = inferType(storage, c.Format, c.Length)
		c.Decoder = bindDecoder(c.LogicalType, storage, st.meta.codec, isDateFromDatetimeFormat(c.Format))
		cols[i] = c
	}
	return cols
}

func bindDecoder(logical LogicalType, storage StorageKind, codec *encoding.Decoder, dateFromDatetime bool) fieldDecoder {
	switch logical {
	case TypeString:
		return decodeTextField(codec)
	case TypeTime:
		return decodeTimeField
	case TypeDateTime:
		return decodeDateTimeField
	case TypeDate:
		if dateFromDatetime {
			return decodeDateFromDatetimeField
		}
		return decodeDateDaysField
	case TypeNumber:
		return decodeNumberField
	default:
		if storage == StorageString {
			return decodeTextField(codec)
		}
		return decodeNumberField
	}
}
