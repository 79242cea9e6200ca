package sas7bdat

import (
	"context"
	"io"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// Reader is an open SAS7BDAT file: parsed metadata and column schema, plus
// the long-lived handle that holds the file open for the Reader's lifetime
// (§5). Metadata and Columns are immutable after Open and safe to share
// read-only across any number of concurrent ReadRows iterations; each
// iteration owns its own independent page source and decode buffers.
type Reader struct {
	path     string
	openOpts OpenOptions

	lockFile *os.File
	mapping  mmap.MMap // non-nil only when OpenOptions.UseMmap was set

	meta    *FileMetadata
	columns []*ColumnInfo

	mu     sync.Mutex
	closed bool
}

// Open parses a SAS7BDAT file's header and metadata and returns a Reader
// ready for ReadRows/ReadRecords (§6.3). A missing file, bad magic number or
// short read yields ErrFileNotFound, ErrBadMagic or ErrTruncated (possibly
// wrapped); other open, mapping or decode failures are returned wrapped. No
// Reader is returned on any failure.
func Open(path string, opts ...OpenOption) (*Reader, error) {
	openOpts := buildOpenOptions(opts...)

	lockFile, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrFileNotFound, path)
		}
		return nil, errors.Wrap(err, "opening file")
	}

	r := &Reader{path: path, openOpts: openOpts, lockFile: lockFile}

	if openOpts.UseMmap {
		m, err := mmap.Map(lockFile, mmap.RDONLY, 0)
		if err != nil {
			lockFile.Close()
			return nil, errors.Wrap(err, "memory-mapping file")
		}
		r.mapping = m
	}

	if openOpts.Logger != nil {
		SetLogger(openOpts.Logger)
	}

	cursor, err := r.newCursor(0)
	if err != nil {
		r.Close()
		return nil, err
	}
	defer cursor.Close()

	meta, err := parseHeader(cursor)
	if err != nil {
		r.Close()
		return nil, err
	}

	align := !openOpts.NoAlignCorrection
	pages := func() ([]byte, error) {
		buf := make([]byte, meta.PageLength)
		if _, err := io.ReadFull(cursor, buf); err != nil {
			return nil, errors.Wrap(ErrTruncated, "reading metadata page")
		}
		return buf, nil
	}

	columns, err := parseSubheaders(pages, meta.Format, meta.Endian, meta, align)
	if err != nil {
		r.Close()
		return nil, err
	}

	r.meta = meta
	r.columns = columns
	return r, nil
}

// newCursor opens an independent, forward-only read handle positioned
// byteOffset bytes into the file (§5's "fresh sequentially-scanning
// handle"): a freshly opened and seeked *os.File in plain mode, or a
// zero-cost cursor into the shared mapping in mmap mode.
func (r *Reader) newCursor(byteOffset int64) (io.ReadCloser, error) {
	if r.mapping != nil {
		pos := int(byteOffset)
		if pos > len(r.mapping) {
			pos = len(r.mapping)
		}
		return nopCloser{&mmapCursor{data: r.mapping, pos: pos}}, nil
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sequential read handle")
	}
	if _, err := f.Seek(byteOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "seeking sequential read handle")
	}
	return f, nil
}

// Metadata returns the file's parsed header fields, by shared reference.
func (r *Reader) Metadata() *FileMetadata { return r.meta }

// Columns returns the file's column schema, in file order, by shared
// reference.
func (r *Reader) Columns() []*ColumnInfo { return r.columns }

// Close releases the Reader's long-lived lock handle. In-flight
// iterations started from this Reader are unaffected; they own their own
// handles.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.mapping != nil {
		if uerr := r.mapping.Unmap(); uerr != nil {
			err = errors.Wrap(uerr, "unmapping file")
		}
	}
	if cerr := r.lockFile.Close(); cerr != nil && err == nil {
		err = errors.Wrap(cerr, "closing lock handle")
	}
	return err
}

func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// RowIterator is a lazy, cancellable, forward-only sequence of
// column-projected rows (§4.9). Call Next until it returns false, then
// check Err; a false return with a nil Err means the dataset (or the
// configured max_rows) was exhausted, not a failure.
type RowIterator struct {
	r          *Reader
	cursor     io.ReadCloser
	fetcher    *pageFetcher
	opts       ReadOptions
	projection []int
	outputSlot map[int]int

	pageRows [][]byte
	pageIdx  int

	totalSeen int
	yielded   int
	skipLeft  int

	dest []Value
	err  error
	done bool
}

// ReadRows opens a private handle into the file and returns an iterator
// over its rows, column-projected per opts (§4.9.1, §6.2).
func (r *Reader) ReadRows(opts ...ReadOption) (*RowIterator, error) {
	if r.isClosed() {
		return nil, errors.Wrap(errClosed, "ReadRows")
	}
	ro := buildReadOptions(opts...)

	cursor, err := r.newCursor(int64(r.meta.HeaderLength))
	if err != nil {
		return nil, err
	}

	if r.mapping == nil {
		size := ro.bufferSize
		if size <= 0 {
			size = 2 * r.meta.PageLength
			if sp := os.Getpagesize(); sp > size {
				size = sp
			}
		}
		cursor = newBufferedCursor(cursor, size)
	}

	src := newReaderPageSource(cursor, r.meta.PageLength)
	projection := ro.projectionIndices(r.columns)
	outputSlot := make(map[int]int, len(projection))
	for slot, colIdx := range projection {
		outputSlot[colIdx] = slot
	}

	return &RowIterator{
		r:          r,
		cursor:     cursor,
		fetcher:    newPageFetcher(src),
		opts:       ro,
		projection: projection,
		outputSlot: outputSlot,
		skipLeft:   ro.skipRows,
		dest:       make([]Value, len(projection)),
	}, nil
}

// Next advances to the next selected row, applying skip_rows/max_rows and
// checking ctx at every suspension point §5 names: before the first read,
// after every completed read, and after every yielded row. It returns false
// at end of stream or on error/cancellation; call Err to distinguish them.
func (it *RowIterator) Next(ctx context.Context) bool {
	if it.err != nil || it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.fail(errors.Wrap(ErrCancelled, "context done before read"))
		return false
	}

	for {
		if it.pageIdx >= len(it.pageRows) {
			if !it.advance(ctx) {
				return false
			}
			continue
		}
		if it.totalSeen >= it.r.meta.RowCount {
			it.done = true
			return false
		}

		row := it.pageRows[it.pageIdx]
		it.pageIdx++
		it.totalSeen++

		if it.skipLeft > 0 {
			it.skipLeft--
			continue
		}
		if it.opts.maxRows > 0 && it.yielded >= it.opts.maxRows {
			it.done = true
			return false
		}

		if err := it.serialize(row); err != nil {
			it.fail(err)
			return false
		}
		it.yielded++

		if err := ctx.Err(); err != nil {
			it.fail(errors.Wrap(ErrCancelled, "context done after yielding row"))
			return false
		}
		return true
	}
}

func (it *RowIterator) advance(ctx context.Context) bool {
	page, err := it.fetcher.await()
	if err != nil {
		if err == io.EOF {
			it.done = true
			return false
		}
		it.fail(errors.Wrap(err, "reading page"))
		return false
	}
	if err := ctx.Err(); err != nil {
		it.fail(errors.Wrap(ErrCancelled, "context done after page read"))
		return false
	}

	h, err := parsePageHeader(page, it.r.meta.Format, it.r.meta.Endian)
	if err != nil {
		it.fail(err)
		return false
	}

	rowsRemaining := it.r.meta.RowCount - it.totalSeen
	align := !it.r.openOpts.NoAlignCorrection
	rows, err := enumerateRows(page, h, it.r.meta.Format, it.r.meta.Endian,
		it.r.meta.RowLength, it.r.meta.MixPageRowCount, rowsRemaining, it.r.meta.Compression, align)
	if err != nil {
		it.fail(err)
		return false
	}

	it.pageRows = rows
	it.pageIdx = 0
	return true
}

// serialize implements the column projection serializer (§4.9.1): every
// selected column, in file order, decoded into its destination slot. A
// column with Length 0 (a trailing phantom/padding column some SAS writers
// emit) ends decoding for the rest of the row, matching the teacher's own
// `if length == 0 { break }` in processByteArrayWithData: every selected
// column at or after it is left absent rather than failing the whole row.
func (it *RowIterator) serialize(row []byte) error {
	for i := range it.dest {
		it.dest[i] = absentValue
	}
	for _, col := range it.r.columns {
		if col.Length == 0 {
			break
		}
		slot, selected := it.outputSlot[col.Index]
		if !selected {
			continue
		}
		if err := boundsCheck(row, col.Offset, col.Length); err != nil {
			return errors.Wrapf(err, "column %q cell", col.Name)
		}
		v, err := col.Decoder(row[col.Offset:col.Offset+col.Length], it.r.meta.Endian)
		if err != nil {
			return errors.Wrapf(err, "decoding column %q", col.Name)
		}
		it.dest[slot] = v
	}
	return nil
}

func (it *RowIterator) fail(err error) {
	it.err = err
	it.done = true
}

// Row returns the most recently decoded, column-projected row. Its
// contents are only valid until the next call to Next, per §4.9.
func (it *RowIterator) Row() []Value { return it.dest }

// Err returns the error that ended iteration, or nil if iteration is still
// in progress or ended cleanly at end of stream / max_rows.
func (it *RowIterator) Err() error { return it.err }

// Close releases the iteration's private read handle.
func (it *RowIterator) Close() error { return it.cursor.Close() }

// RecordTransform maps one column-projected row into a caller-defined
// value (§6.3's read_records).
type RecordTransform[T any] func(row []Value) (T, error)

// RecordIterator wraps a RowIterator, applying transform to each row as it
// is produced.
type RecordIterator[T any] struct {
	rows      *RowIterator
	transform RecordTransform[T]
	cur       T
	err       error
}

// ReadRecords is read_records(transform, options) from §6.3. Declared as a
// free function, not a Reader method, because Go methods cannot carry their
// own type parameters.
func ReadRecords[T any](r *Reader, transform RecordTransform[T], opts ...ReadOption) (*RecordIterator[T], error) {
	rows, err := r.ReadRows(opts...)
	if err != nil {
		return nil, err
	}
	return &RecordIterator[T]{rows: rows, transform: transform}, nil
}

// Next advances to the next record, decoding and transforming the next
// selected row. See RowIterator.Next for the cancellation contract.
func (it *RecordIterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.rows.Next(ctx) {
		it.err = it.rows.Err()
		return false
	}
	rec, err := it.transform(it.rows.Row())
	if err != nil {
		it.err = errors.Wrap(err, "transforming row")
		return false
	}
	it.cur = rec
	return true
}

// Record returns the most recently produced value.
func (it *RecordIterator[T]) Record() T { return it.cur }

// Err returns the error that ended iteration, or nil.
func (it *RecordIterator[T]) Err() error { return it.err }

// Close releases the underlying row iterator's private read handle.
func (it *RecordIterator[T]) Close() error { return it.rows.Close() }
