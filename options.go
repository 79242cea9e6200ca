package sas7bdat

import logger "github.com/sirupsen/logrus"

// ReadOptions configures one row_reader iteration (§6.2). The zero value
// selects every column, skips nothing, and reads every remaining row.
type ReadOptions struct {
	selectedNames   map[string]bool
	selectedIndices map[int]bool
	skipRows        int
	maxRows         int
	bufferSize      int
}

// ReadOption mutates a ReadOptions in the functional-option idiom (see
// DESIGN.md for why this replaces the teacher's own exported-field style).
type ReadOption func(*ReadOptions)

// WithSelectedNames restricts iteration to the named columns, in file order.
// Ignored if WithSelectedIndices is also supplied.
func WithSelectedNames(names ...string) ReadOption {
	return func(o *ReadOptions) {
		if o.selectedNames == nil {
			o.selectedNames = make(map[string]bool, len(names))
		}
		for _, n := range names {
			o.selectedNames[n] = true
		}
	}
}

// WithSelectedIndices restricts iteration to the given zero-based column
// indices, in file order. Wins over WithSelectedNames when both are set.
func WithSelectedIndices(indices ...int) ReadOption {
	return func(o *ReadOptions) {
		if o.selectedIndices == nil {
			o.selectedIndices = make(map[int]bool, len(indices))
		}
		for _, i := range indices {
			o.selectedIndices[i] = true
		}
	}
}

// WithSkipRows discards the first n rows before any are yielded.
func WithSkipRows(n int) ReadOption {
	return func(o *ReadOptions) { o.skipRows = n }
}

// WithMaxRows bounds the number of rows yielded. Zero (the default) means
// unbounded.
func WithMaxRows(n int) ReadOption {
	return func(o *ReadOptions) { o.maxRows = n }
}

// WithBufferSize overrides the OS-level read buffer ReadRows coalesces
// page_length-sized page reads through, in plain-file mode (ignored when
// WithMmap is set, since a mapped file has no read buffer to size). Default
// when unset, or when n <= 0, is max(2*page_length, system page size).
func WithBufferSize(n int) ReadOption {
	return func(o *ReadOptions) { o.bufferSize = n }
}

func buildReadOptions(opts ...ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// projectionIndices resolves the configured selection against the reader's
// column schema, in file order. Indices win over names (§4.9.1); an empty
// selection means every column.
func (o ReadOptions) projectionIndices(columns []*ColumnInfo) []int {
	if len(o.selectedIndices) > 0 {
		out := make([]int, 0, len(o.selectedIndices))
		for _, c := range columns {
			if o.selectedIndices[c.Index] {
				out = append(out, c.Index)
			}
		}
		return out
	}
	if len(o.selectedNames) > 0 {
		out := make([]int, 0, len(o.selectedNames))
		for _, c := range columns {
			if o.selectedNames[c.Name] {
				out = append(out, c.Index)
			}
		}
		return out
	}
	out := make([]int, len(columns))
	for i, c := range columns {
		out[i] = c.Index
	}
	return out
}

// OpenOptions configures Open (§6.2, §A.3).
type OpenOptions struct {
	// UseMmap backs the reader's exclusive lock handle with a memory
	// mapping (§5) instead of a plain file handle.
	UseMmap bool

	// Logger, when non-nil, replaces the package-level logger via
	// SetLogger. The replacement applies to every Reader in the process,
	// not only the one being opened.
	Logger *logger.Logger

	// NoAlignCorrection disables the mix-page 8-byte alignment correction
	// (§4.7.3) for files the teacher needed this escape hatch for.
	NoAlignCorrection bool
}

// OpenOption mutates OpenOptions in the same functional-option idiom as
// ReadOption, for the same reason.
type OpenOption func(*OpenOptions)

func WithMmap(enabled bool) OpenOption {
	return func(o *OpenOptions) { o.UseMmap = enabled }
}

func WithLogger(l *logger.Logger) OpenOption {
	return func(o *OpenOptions) { o.Logger = l }
}

func WithNoAlignCorrection(disabled bool) OpenOption {
	return func(o *OpenOptions) { o.NoAlignCorrection = disabled }
}

func buildOpenOptions(opts ...OpenOption) OpenOptions {
	var o OpenOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
