package sas7bdat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferTypeStringAlwaysWins(t *testing.T) {
	require.Equal(t, TypeString, inferType(StorageString, "DATETIME20.", 8))
}

func TestInferTypeUnknownStorage(t *testing.T) {
	require.Equal(t, TypeUnknown, inferType(StorageUnknown, "", 8))
}

func TestInferTypeShortNumericWidths(t *testing.T) {
	require.Equal(t, TypeNumber, inferType(StorageNumber, "DATE9.", 0))
	require.Equal(t, TypeNumber, inferType(StorageNumber, "DATE9.", 1))
	require.Equal(t, TypeNumber, inferType(StorageNumber, "DATE9.", 2))
}

func TestInferTypeEmptyFormat(t *testing.T) {
	require.Equal(t, TypeNumber, inferType(StorageNumber, "", 8))
	require.Equal(t, TypeNumber, inferType(StorageNumber, "   ", 8))
}

func TestInferTypeISO8601DateTime(t *testing.T) {
	for _, f := range []string{"B8601DT19.", "E8601DT.", "IS8601DZ", "B8601DZ"} {
		require.Equal(t, TypeDateTime, inferType(StorageNumber, f, 8), f)
	}
}

func TestInferTypeISO8601Time(t *testing.T) {
	for _, f := range []string{"B8601TM15.", "E8601TN", "E8601LZ"} {
		require.Equal(t, TypeTime, inferType(StorageNumber, f, 8), f)
	}
}

func TestInferTypeISO8601Date(t *testing.T) {
	for f, fromDatetime := range map[string]bool{"B8601DA10.": false, "E8601DN10.": true, "IS8601DN": true} {
		require.Equal(t, TypeDate, inferType(StorageNumber, f, 8), f)
		require.Equal(t, fromDatetime, isDateFromDatetimeFormat(f), f)
	}
}

func TestInferTypeGenericDateTime(t *testing.T) {
	require.Equal(t, TypeDateTime, inferType(StorageNumber, "DATETIME20.", 8))
}

func TestInferTypeGenericTime(t *testing.T) {
	for _, f := range []string{"TIME8.", "HHMM5.", "MMSS.", "HMS8.", "HOUR.", "MINUTE.", "SECOND."} {
		require.Equal(t, TypeTime, inferType(StorageNumber, f, 8), f)
	}
}

func TestInferTypeGenericDate(t *testing.T) {
	for _, f := range []string{"DATE9.", "MMDDYY10.", "YYMMDD10.", "JULIAN5.", "MONYY7.", "YEAR4."} {
		require.Equal(t, TypeDate, inferType(StorageNumber, f, 8), f)
	}
}

func TestInferTypeSuffixRules(t *testing.T) {
	require.Equal(t, TypeDateTime, inferType(StorageNumber, "DTWHATEVER", 8))
	require.Equal(t, TypeDateTime, inferType(StorageNumber, "FOODT", 8))
	require.Equal(t, TypeDateTime, inferType(StorageNumber, "FOODZ", 8))
	require.Equal(t, TypeTime, inferType(StorageNumber, "FOOTM", 8))
	require.Equal(t, TypeTime, inferType(StorageNumber, "FOOTN", 8))
	require.Equal(t, TypeDate, inferType(StorageNumber, "FOODA", 8))
	require.Equal(t, TypeDate, inferType(StorageNumber, "FOODN", 8))
}

func TestInferTypeFallsBackToNumber(t *testing.T) {
	require.Equal(t, TypeNumber, inferType(StorageNumber, "COMMA10.2", 8))
}

func TestNormalizeFormatStripsDecorations(t *testing.T) {
	require.Equal(t, "DATE", normalizeFormat(" date9. "))
	require.Equal(t, "COMMA", normalizeFormat("comma10.2"))
}
