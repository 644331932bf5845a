package mfs

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// StreamingFileHandle serves random-access reads of one open virtual file.
// Calls on a single handle must be serialized by the caller.
//
// Sequential content is pulled from its producer block by block into an
// append-only buffer, only as far as reads require. Backward and repeated reads
// are answered from that buffer without touching the producer again.
type StreamingFileHandle struct {
	kind ContentKind

	// data holds InMemory content, or what has been pulled so far from a
	// Sequential producer.
	data []byte

	seeker io.ReadSeekCloser
	stream io.ReadCloser

	blockSize int
	exhausted bool
	released  bool

	// pulls counts block reads issued to the producer.
	pulls int
}

func newStreamingFileHandle(c Content, blockSize int) (*StreamingFileHandle, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	h := &StreamingFileHandle{blockSize: blockSize}
	switch c := c.(type) {
	case inMemory:
		h.kind = KindInMemory
		h.data = c.data
	case seekable:
		if c.stream == nil {
			return nil, fmt.Errorf("%w: seekable content without a stream", ErrUnsupported)
		}
		h.kind = KindSeekable
		h.seeker = c.stream
	case sequential:
		if c.stream == nil {
			return nil, fmt.Errorf("%w: sequential content without a stream", ErrUnsupported)
		}
		h.kind = KindSequential
		h.stream = c.stream
	default:
		return nil, fmt.Errorf("%w: content map returned %T", ErrUnsupported, c)
	}
	return h, nil
}

// Kind reports which content variant backs the handle.
func (h *StreamingFileHandle) Kind() ContentKind { return h.kind }

// Read returns up to size bytes starting at offset. Reading at or beyond the
// end of the content returns no bytes and no error.
func (h *StreamingFileHandle) Read(offset int64, size int) ([]byte, error) {
	if h.released {
		return nil, os.ErrClosed
	}
	if offset < 0 || size < 0 {
		return nil, fmt.Errorf("invalid read window (offset %d, size %d)", offset, size)
	}

	switch h.kind {
	case KindInMemory:
		return window(h.data, offset, size), nil
	case KindSeekable:
		return h.readSeekable(offset, size)
	case KindSequential:
		return h.readSequential(offset, size)
	}
	return nil, ErrUnsupported
}

func (h *StreamingFileHandle) readSeekable(offset int64, size int) ([]byte, error) {
	if _, err := h.seeker.Seek(offset, io.SeekStart); err != nil {
		return nil, upstream("seek", "seekable content", err)
	}
	buf := make([]byte, size)
	n, err := io.ReadFull(h.seeker, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, upstream("read", "seekable content", err)
	}
	return buf[:n], nil
}

func (h *StreamingFileHandle) readSequential(offset int64, size int) ([]byte, error) {
	end := offset + int64(size)
	for !h.exhausted && int64(len(h.data)) < end {
		if err := h.pull(); err != nil {
			return nil, err
		}
	}
	return window(h.data, offset, size), nil
}

// pull appends one block from the producer. A short or empty block means the
// producer is done.
func (h *StreamingFileHandle) pull() error {
	h.pulls++
	start := len(h.data)
	h.data = append(h.data, make([]byte, h.blockSize)...)
	n, err := io.ReadFull(h.stream, h.data[start:])
	h.data = h.data[:start+n]
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		h.exhausted = true
		return nil
	}
	return upstream("read", "sequential content", err)
}

// Release closes the stream the content map handed out. Later calls do
// nothing.
func (h *StreamingFileHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	switch h.kind {
	case KindSeekable:
		return h.seeker.Close()
	case KindSequential:
		return h.stream.Close()
	}
	return nil
}

func window(data []byte, offset int64, size int) []byte {
	n := int64(len(data))
	if offset >= n {
		return []byte{}
	}
	end := offset + int64(size)
	if end > n {
		end = n
	}
	return data[offset:end]
}
