package sas7bdat

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// defaultEncodingName is used whenever the header's encoding byte is
// unrecognized, and whenever a recognized name has no corresponding x/text
// codec.
const defaultEncodingName = "WINDOWS-1252"

// encodingByByte maps a SAS encoding byte to a canonical encoding name. The
// ranges below are named explicitly in the format documentation: UTF-8 (20),
// US-ASCII (28), ISO-8859-1..15 (29-40), DOS code pages CP437..CP1129
// (41-59), WINDOWS-1250..1258 (60-68), and a block of Asian/ISO-2022
// encodings starting at 69. Within each range, byte values are assigned in
// the order of the lists below.
var encodingByByte = buildEncodingByByte()

func buildEncodingByByte() map[byte]string {
	m := map[byte]string{
		20: "UTF-8",
		28: "US-ASCII",
	}

	// ISO-8859-1..15, packed into the 12 bytes 29..40. ISO-8859-12 was
	// never finalized and ISO-8859-11/14/16 are rare, so the run of
	// contiguous variants (1 through 10) is assigned first, then the
	// remaining two slots cover 13 and 15.
	isoVariants := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 13, 15}
	for i, v := range isoVariants {
		m[byte(29+i)] = "ISO-8859-" + itoa(v)
	}

	// DOS code pages 41..59. Not every historical DOS code page survives
	// in modern codec libraries; unresolvable names fall back to
	// WINDOWS-1252 at resolution time per §4.2.
	dosPages := []int{437, 850, 852, 855, 857, 858, 860, 862, 863, 864, 865,
		866, 869, 874, 921, 922, 1047, 1140, 1129}
	for i, v := range dosPages {
		m[byte(41+i)] = "CP" + itoa(v)
	}

	windows := []int{1250, 1251, 1252, 1253, 1254, 1255, 1256, 1257, 1258}
	for i, v := range windows {
		m[byte(60+i)] = "WINDOWS-" + itoa(v)
	}

	asian := []string{"CP932", "CP936", "CP949", "CP950", "EUC-JP", "EUC-KR",
		"EUC-TW", "BIG5", "GB18030", "SHIFT_JIS",
		"ISO-2022-JP", "ISO-2022-KR", "ISO-2022-CN"}
	for i, name := range asian {
		m[byte(69+i)] = name
	}

	return m
}

// itoa avoids importing strconv just for this table; it only ever needs to
// render small positive integers.
func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// encodingName resolves a SAS encoding byte to a canonical name, falling
// back to WINDOWS-1252 when the byte is unrecognized.
func encodingName(b byte) string {
	if name, ok := encodingByByte[b]; ok {
		return name
	}
	return defaultEncodingName
}

// encodingByName maps a subset of the canonical names back to x/text codecs.
// Names with no ecosystem codec resolve through the WINDOWS-1252 fallback,
// exactly as §4.2 specifies for "unresolvable names".
var encodingByName = map[string]encoding.Encoding{
	"UTF-8":    encoding.Nop,
	"US-ASCII": encoding.Nop,

	"ISO-8859-1":  charmap.ISO8859_1,
	"ISO-8859-2":  charmap.ISO8859_2,
	"ISO-8859-3":  charmap.ISO8859_3,
	"ISO-8859-4":  charmap.ISO8859_4,
	"ISO-8859-5":  charmap.ISO8859_5,
	"ISO-8859-6":  charmap.ISO8859_6,
	"ISO-8859-7":  charmap.ISO8859_7,
	"ISO-8859-8":  charmap.ISO8859_8,
	"ISO-8859-9":  charmap.ISO8859_9,
	"ISO-8859-10": charmap.ISO8859_10,
	"ISO-8859-13": charmap.ISO8859_13,
	"ISO-8859-15": charmap.ISO8859_15,

	"CP437":  charmap.CodePage437,
	"CP850":  charmap.CodePage850,
	"CP852":  charmap.CodePage852,
	"CP855":  charmap.CodePage855,
	"CP858":  charmap.CodePage858,
	"CP860":  charmap.CodePage860,
	"CP862":  charmap.CodePage862,
	"CP863":  charmap.CodePage863,
	"CP865":  charmap.CodePage865,
	"CP866":  charmap.CodePage866,
	"CP1047": charmap.CodePage1047,
	"CP1140": charmap.CodePage1140,

	"WINDOWS-1250": charmap.Windows1250,
	"WINDOWS-1251": charmap.Windows1251,
	"WINDOWS-1252": charmap.Windows1252,
	"WINDOWS-1253": charmap.Windows1253,
	"WINDOWS-1254": charmap.Windows1254,
	"WINDOWS-1255": charmap.Windows1255,
	"WINDOWS-1256": charmap.Windows1256,
	"WINDOWS-1257": charmap.Windows1257,
	"WINDOWS-1258": charmap.Windows1258,

	"CP932":     japanese.ShiftJIS,
	"SHIFT_JIS": japanese.ShiftJIS,
	"EUC-JP":    japanese.EUCJP,

	"CP949":  korean.EUCKR,
	"EUC-KR": korean.EUCKR,

	"CP936":   simplifiedchinese.GBK,
	"GB18030": simplifiedchinese.GB18030,

	"CP950": traditionalchinese.Big5,
	"BIG5":  traditionalchinese.Big5,

	"ISO-2022-JP": japanese.ISO2022JP,
}

// resolveCodec returns a decoder for the named encoding, falling back to
// WINDOWS-1252 when the name has no registered codec.
func resolveCodec(name string) *encoding.Decoder {
	enc, ok := encodingByName[name]
	if !ok {
		enc = encodingByName[defaultEncodingName]
	}
	return enc.NewDecoder()
}
