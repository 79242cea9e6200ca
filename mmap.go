package sas7bdat

import (
	"bufio"
	"io"
)

// pageSource is a forward-only, page_length-at-a-time byte source positioned
// somewhere past the file header. Each row-reading iteration owns an
// independent pageSource over the same underlying file (§5): a plain file
// gets a fresh *os.File per source, a memory-mapped file gets a fresh
// zero-cost cursor into the shared mapping.
type pageSource interface {
	// next returns the next page_length-sized page. err is io.EOF once
	// fewer than page_length bytes remain, per §4.9 step 4; any other
	// error is a genuine read failure.
	next() ([]byte, error)
}

// readerPageSource reads pages from an io.Reader (a freshly opened,
// seeked *os.File, or a mmapCursor) into one of two alternating buffers, so
// the buffer the caller is still decoding is never the one a concurrent
// prefetch is filling (§4.9 step 2's "double buffer").
type readerPageSource struct {
	r          io.Reader
	pageLength int
	bufs       [2][]byte
	slot       int
}

func newReaderPageSource(r io.Reader, pageLength int) *readerPageSource {
	return &readerPageSource{
		r:          r,
		pageLength: pageLength,
		bufs:       [2][]byte{make([]byte, pageLength), make([]byte, pageLength)},
	}
}

func (s *readerPageSource) next() ([]byte, error) {
	buf := s.bufs[s.slot]
	s.slot = 1 - s.slot
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf, nil
}

// bufferedCursor wraps a plain-file cursor in a bufio.Reader sized to
// file_buffer_size (§6.2), so the OS reads behind each page_length-sized
// readerPageSource.next() are coalesced into larger, less frequent syscalls.
// Only meaningful for a plain-file cursor; a mmapCursor already reads
// straight out of resident mapped memory, so ReadRows never wraps one.
type bufferedCursor struct {
	*bufio.Reader
	underlying io.Closer
}

func newBufferedCursor(rc io.ReadCloser, size int) io.ReadCloser {
	return &bufferedCursor{Reader: bufio.NewReaderSize(rc, size), underlying: rc}
}

func (b *bufferedCursor) Close() error { return b.underlying.Close() }

// mmapCursor is an independent read position into a shared, read-only
// memory mapping. Multiple cursors over the same mapping cost nothing but
// the struct itself and never contend, since the backing bytes are never
// written.
type mmapCursor struct {
	data []byte
	pos  int
}

func (c *mmapCursor) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.pos:])
	c.pos += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// nopCloser adapts an io.Reader with no real resource to release (a
// mmapCursor) to io.ReadCloser, so callers can treat every cursor kind
// uniformly.
type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

// pageFetcher keeps exactly one page read in flight at all times (§5's
// "one outstanding asynchronous page read"): await blocks for the
// in-flight read, then immediately issues the next one before returning,
// so decode of page n overlaps the I/O of page n+1.
type pageFetcher struct {
	src      pageSource
	resultCh chan fetchResult
}

type fetchResult struct {
	page []byte
	err  error
}

func newPageFetcher(src pageSource) *pageFetcher {
	pf := &pageFetcher{src: src, resultCh: make(chan fetchResult, 1)}
	pf.issue()
	return pf
}

func (pf *pageFetcher) issue() {
	go func() {
		page, err := pf.src.next()
		pf.resultCh <- fetchResult{page: page, err: err}
	}()
}

func (pf *pageFetcher) await() ([]byte, error) {
	res := <-pf.resultCh
	if res.err == nil {
		pf.issue()
	}
	return res.page, res.err
}
