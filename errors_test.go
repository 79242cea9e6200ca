package sas7bdat

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrorsDistinct(t *testing.T) {
	errs := []error{
		ErrFileNotFound, ErrTruncated, ErrBadMagic, ErrBadCodec, ErrBadField,
		ErrCancelled, errUnknownSubheader, errUnknownPageType, errClosed,
	}
	seen := make(map[string]int)
	for i, err := range errs {
		require.NotNil(t, err)
		msg := err.Error()
		if prev, ok := seen[msg]; ok {
			t.Errorf("error %d has same message as error %d: %q", i, prev, msg)
		}
		seen[msg] = i
	}
}

func TestWrappedSentinelSurvivesIs(t *testing.T) {
	wrapped := errors.Wrapf(ErrBadMagic, "opening %s", "file.sas7bdat")
	require.True(t, errors.Is(wrapped, ErrBadMagic))
	require.Equal(t, ErrBadMagic, errors.Cause(wrapped))
}
