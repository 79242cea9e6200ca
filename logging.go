package sas7bdat

import (
	"os"

	logger "github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// log is the package-level diagnostic logger. It carries a Warn for a
// column-count mismatch between the RowSize and ColumnSize subheaders, and
// Debug entries for skipped unknown subheaders and page types.
var log = &logger.Logger{
	Out:   os.Stderr,
	Level: logger.InfoLevel,
	Formatter: &prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		ForceFormatting: true,
	},
}

// SetLogger replaces the package-level logger. Pass nil to restore the
// default stderr logger.
func SetLogger(l *logger.Logger) {
	if l == nil {
		l = &logger.Logger{
			Out:   os.Stderr,
			Level: logger.InfoLevel,
			Formatter: &prefixed.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
				ForceFormatting: true,
			},
		}
	}
	log = l
}
