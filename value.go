package sas7bdat

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
)

// Kind identifies which field of a Value is meaningful.
type Kind uint8

const (
	// KindAbsent marks a missing cell: the SAS sentinel NaN, an
	// out-of-range date/datetime, or (never for text) an empty cell.
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindDate
	KindDateTime
	KindTime
)

// Value is a single decoded cell. Exactly one accessor is meaningful,
// selected by Kind.
type Value struct {
	Kind Kind

	str      string
	num      float64
	instant  time.Time
	duration time.Duration
}

// Absent reports whether the cell holds the missing-value marker.
func (v Value) Absent() bool { return v.Kind == KindAbsent }

// String returns the decoded text, or "" if Kind is not KindString.
func (v Value) String() string {
	if v.Kind != KindString {
		return ""
	}
	return v.str
}

// Float64 returns the decoded number, or 0 if Kind is not KindNumber.
func (v Value) Float64() float64 {
	if v.Kind != KindNumber {
		return 0
	}
	return v.num
}

// Time returns the decoded date or datetime instant, or the zero time if
// Kind is neither KindDate nor KindDateTime.
func (v Value) Time() time.Time {
	if v.Kind != KindDate && v.Kind != KindDateTime {
		return time.Time{}
	}
	return v.instant
}

// Duration returns the decoded time-of-day duration, or 0 if Kind is not
// KindTime.
func (v Value) Duration() time.Duration {
	if v.Kind != KindTime {
		return 0
	}
	return v.duration
}

var absentValue = Value{Kind: KindAbsent}

// sasEpoch is the reference instant for all SAS numeric date/datetime
// encoding: 1960-01-01T00:00:00Z.
var sasEpoch = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)

// fieldDecoder converts a cell's raw row bytes into a typed Value. It is
// bound once per column at metadata-parse time (§4.7.4) and is pure,
// re-entrant, and allocation-free except for decodeTextField's returned
// string.
type fieldDecoder func(raw []byte, e Endian) (Value, error)

// decodeTextField trims and decodes a fixed-width text cell. An all-blank or
// all-NUL cell decodes to an empty string, never to absent.
func decodeTextField(dec *encoding.Decoder) fieldDecoder {
	return func(raw []byte, _ Endian) (Value, error) {
		trimmed := trimFixedWidth(raw)
		if dec == nil || len(trimmed) == 0 {
			return Value{Kind: KindString, str: string(trimmed)}, nil
		}
		out, err := dec.Bytes(trimmed)
		if err != nil {
			return Value{}, errors.Wrap(err, "decoding text cell")
		}
		return Value{Kind: KindString, str: string(out)}, nil
	}
}

// decodeNumberField interprets raw as an integer of its own width at
// endianness e, then bit-casts to float64, per §4.4. It reports ErrBadField
// for widths outside {1,2,3,...,8}. A resulting NaN is the absent marker.
func decodeNumberField(raw []byte, e Endian) (Value, error) {
	f, err := decodeNumberRaw(raw, e)
	if err != nil {
		return Value{}, err
	}
	if math.IsNaN(f) {
		return absentValue, nil
	}
	return Value{Kind: KindNumber, num: f}, nil
}

// decodeNumberRaw implements the width-dependent bit-cast described in
// §4.4: width 1 is an unsigned byte, width 2 a signed int16, width 8 a
// direct IEEE-754 double, and widths 3-7 are padded to 8 bytes by
// zero-filling the least-significant end (the low end of a little-endian
// buffer, the high end of a big-endian one) before the same bit-cast.
func decodeNumberRaw(raw []byte, e Endian) (float64, error) {
	w := len(raw)
	bo := e.order()
	switch w {
	case 1:
		return float64(raw[0]), nil
	case 2:
		return float64(int16(bo.Uint16(raw))), nil
	case 8:
		return math.Float64frombits(bo.Uint64(raw)), nil
	case 3, 4, 5, 6, 7:
		var buf [8]byte
		if e == LittleEndian {
			copy(buf[8-w:], raw)
		} else {
			copy(buf[:w], raw)
		}
		return math.Float64frombits(bo.Uint64(buf[:])), nil
	default:
		return 0, errors.Wrapf(ErrBadField, "numeric cell width %d outside {1,2,3..7,8}", w)
	}
}

// roundHalfAwayFromZero implements the rounding rule §4.4 specifies for
// time/datetime cells.
func roundHalfAwayFromZero(x float64) float64 {
	if x >= 0 {
		return math.Floor(x + 0.5)
	}
	return math.Ceil(x - 0.5)
}

// maxRepresentableSeconds bounds the seconds-since-epoch value a decoded
// datetime may carry before it is treated as outside the host's
// representable instant range and mapped to absent, rather than risking an
// overflowing time.Time computation.
const maxRepresentableSeconds = 1e17

// decodeTimeField decodes a duration cell: a number, rounded to a whole
// integer of seconds.
func decodeTimeField(raw []byte, e Endian) (Value, error) {
	v, err := decodeNumberField(raw, e)
	if err != nil {
		return Value{}, err
	}
	if v.Absent() {
		return absentValue, nil
	}
	seconds := roundHalfAwayFromZero(v.num)
	return Value{Kind: KindTime, duration: time.Duration(seconds) * time.Second}, nil
}

// decodeDateTimeField decodes a timestamp cell: seconds since the SAS
// epoch, rounded to a whole integer of seconds.
func decodeDateTimeField(raw []byte, e Endian) (Value, error) {
	v, err := decodeNumberField(raw, e)
	if err != nil {
		return Value{}, err
	}
	if v.Absent() {
		return absentValue, nil
	}
	seconds := roundHalfAwayFromZero(v.num)
	if math.Abs(seconds) > maxRepresentableSeconds {
		return absentValue, nil
	}
	return Value{Kind: KindDateTime, instant: time.Unix(sasEpoch.Unix()+int64(seconds), 0).UTC()}, nil
}

// decodeDateDaysField decodes a whole-days-since-epoch date cell (every
// date format except the "date-from-datetime" family).
func decodeDateDaysField(raw []byte, e Endian) (Value, error) {
	v, err := decodeNumberField(raw, e)
	if err != nil {
		return Value{}, err
	}
	if v.Absent() {
		return absentValue, nil
	}
	days := roundHalfAwayFromZero(v.num)
	if math.Abs(days) > maxRepresentableSeconds {
		return absentValue, nil
	}
	return Value{Kind: KindDate, instant: sasEpoch.AddDate(0, 0, int(days))}, nil
}

// decodeDateFromDatetimeField decodes a "date-from-datetime" cell
// (B8601DN/E8601DN/IS8601DN formats): seconds since epoch, truncated to the
// calendar date in UTC.
func decodeDateFromDatetimeField(raw []byte, e Endian) (Value, error) {
	v, err := decodeDateTimeField(raw, e)
	if err != nil {
		return Value{}, err
	}
	if v.Absent() {
		return absentValue, nil
	}
	t := v.instant
	return Value{Kind: KindDate, instant: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}, nil
}
