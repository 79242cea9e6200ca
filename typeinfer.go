package sas7bdat

import "strings"

// StorageKind is the raw on-disk storage class of a column, as declared by
// its ColumnAttributes subheader entry.
type StorageKind uint8

const (
	StorageUnknown StorageKind = iota
	StorageNumber
	StorageString
)

// LogicalType is the type a reader surfaces to callers for a column, derived
// from its storage kind, format string, and width per §4.5.
type LogicalType uint8

const (
	TypeUnknown LogicalType = iota
	TypeString
	TypeNumber
	TypeDate
	TypeDateTime
	TypeTime
)

func (t LogicalType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeNumber:
		return "Number"
	case TypeDate:
		return "Date"
	case TypeDateTime:
		return "DateTime"
	case TypeTime:
		return "Time"
	default:
		return "Unknown"
	}
}

var dateTimePrefixes = []string{
	"B8601DT", "E8601DT", "IS8601DT", "B8601DZ", "E8601DZ", "IS8601DZ",
}

var timePrefixes = []string{
	"B8601TM", "E8601TM", "IS8601TM", "B8601TN", "E8601TN", "IS8601TN", "E8601LZ",
}

// iso8601DatePrefixes are the ISO 8601 formats inferred as Date (§4.5 step 7).
var iso8601DatePrefixes = []string{
	"B8601DA", "E8601DA", "IS8601DA", "B8601DN", "E8601DN", "IS8601DN",
}

// dateFromDatetimePrefixes are the formats whose Date decoder must go
// through the seconds-since-epoch path and truncate to a calendar date,
// rather than reading whole days directly.
var dateFromDatetimePrefixes = []string{
	"B8601DN", "E8601DN", "IS8601DN",
}

var genericTimePrefixes = []string{
	"TIME", "HHMM", "MMSS", "HMS", "TIMEAMPM", "HOUR", "MINUTE", "SECOND",
}

var genericDatePrefixes = []string{
	"DATE", "DAY", "YYMMDD", "MMDDYY", "DDMMYY", "JULIAN", "JULDAY", "MONYY",
	"MMYY", "YYMM", "MONNAME", "MONTH", "WEEKDAT", "WORDDAT", "EURDF", "NLDAT",
	"YYQ", "YYMON", "YEAR", "WEEK", "QTR", "QUARTER", "DOWNAME",
}

// normalizeFormat trims, upper-cases, and strips a trailing run of
// width/precision decorations ([0-9.,]) from a raw format string, per §4.5
// step 3.
func normalizeFormat(raw string) string {
	f := strings.ToUpper(strings.TrimSpace(raw))
	end := len(f)
	for end > 0 && isFormatDecoration(f[end-1]) {
		end--
	}
	return f[:end]
}

func isFormatDecoration(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == ','
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// isDateFromDatetimeFormat reports whether format selects the
// "date-from-datetime" Date decoder variant (§4.4, §4.5 step 7).
func isDateFromDatetimeFormat(raw string) bool {
	return hasAnyPrefix(normalizeFormat(raw), dateFromDatetimePrefixes)
}

// inferType implements the §4.5 rules, in order.
func inferType(storage StorageKind, rawFormat string, length int) LogicalType {
	if storage == StorageString {
		return TypeString
	}
	if storage != StorageNumber {
		return TypeUnknown
	}

	f := normalizeFormat(rawFormat)

	if f == "" || length == 0 || length == 1 || length == 2 {
		return TypeNumber
	}
	if hasAnyPrefix(f, dateTimePrefixes) {
		return TypeDateTime
	}
	if hasAnyPrefix(f, timePrefixes) {
		return TypeTime
	}
	if hasAnyPrefix(f, iso8601DatePrefixes) {
		return TypeDate
	}
	if strings.Contains(f, "DATETIME") {
		return TypeDateTime
	}
	if hasAnyPrefix(f, genericTimePrefixes) {
		return TypeTime
	}
	if hasAnyPrefix(f, genericDatePrefixes) {
		return TypeDate
	}
	if strings.HasPrefix(f, "DT") || strings.HasSuffix(f, "DT") || strings.HasSuffix(f, "DZ") {
		return TypeDateTime
	}
	if strings.HasSuffix(f, "TM") || strings.HasSuffix(f, "TN") {
		return TypeTime
	}
	if strings.HasSuffix(f, "DA") || strings.HasSuffix(f, "DN") {
		return TypeDate
	}
	return TypeNumber
}
