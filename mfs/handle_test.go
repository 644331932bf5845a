package mfs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedSeeker struct {
	*bytes.Reader
	closed int
}

func (s *trackedSeeker) Close() error {
	s.closed++
	return nil
}

type trackedStream struct {
	io.Reader
	closed int
}

func (s *trackedStream) Close() error {
	s.closed++
	return nil
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func TestInMemoryRead(t *testing.T) {
	data := []byte("hello, mapped world")
	h, err := newStreamingFileHandle(InMemory(data), 0)
	require.NoError(t, err)
	assert.Equal(t, KindInMemory, h.Kind())

	got, err := h.Read(7, 6)
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(got))

	got, err = h.Read(13, 100)
	require.NoError(t, err)
	assert.Equal(t, " world", string(got))

	got, err = h.Read(int64(len(data)), 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = h.Read(1000, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.NoError(t, h.Release())
}

func TestSeekableRead(t *testing.T) {
	data := payload(300)
	src := &trackedSeeker{Reader: bytes.NewReader(data)}
	h, err := newStreamingFileHandle(Seekable(src), 0)
	require.NoError(t, err)
	assert.Equal(t, KindSeekable, h.Kind())

	got, err := h.Read(250, 10)
	require.NoError(t, err)
	assert.Equal(t, data[250:260], got)

	// Backwards after forwards.
	got, err = h.Read(5, 10)
	require.NoError(t, err)
	assert.Equal(t, data[5:15], got)

	got, err = h.Read(290, 64)
	require.NoError(t, err)
	assert.Equal(t, data[290:], got)

	got, err = h.Read(300, 64)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = h.Read(5000, 64)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, h.Release())
	assert.Equal(t, 1, src.closed)
}

func TestSequentialReadIdempotent(t *testing.T) {
	data := payload(1000)
	src := &trackedStream{Reader: bytes.NewReader(data)}
	h, err := newStreamingFileHandle(Sequential(src), 64)
	require.NoError(t, err)
	assert.Equal(t, KindSequential, h.Kind())

	first, err := h.Read(300, 100)
	require.NoError(t, err)
	pulls := h.pulls
	assert.Equal(t, 7, pulls, "400 bytes need seven 64 byte blocks")

	second, err := h.Read(300, 100)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, data[300:400], second)
	assert.Equal(t, pulls, h.pulls, "buffered window must not pull again")

	back, err := h.Read(0, 50)
	require.NoError(t, err)
	assert.Equal(t, data[:50], back)
	assert.Equal(t, pulls, h.pulls)
}

func TestSequentialForwardPulls(t *testing.T) {
	const block = 16
	for _, tc := range []struct {
		length, readSize int
	}{
		{length: 163, readSize: 7},
		{length: 160, readSize: 8},
		{length: 16, readSize: 16},
		{length: 1000, readSize: 100},
	} {
		data := payload(tc.length)
		h, err := newStreamingFileHandle(Sequential(io.NopCloser(bytes.NewReader(data))), block)
		require.NoError(t, err)

		var got []byte
		for off := 0; off < tc.length; off += tc.readSize {
			chunk, err := h.Read(int64(off), tc.readSize)
			require.NoError(t, err)
			got = append(got, chunk...)
		}
		assert.Equal(t, data, got)
		maxPulls := (tc.length + block - 1) / block
		assert.LessOrEqual(t, h.pulls, maxPulls, "length %d", tc.length)
	}
}

func TestSequentialExhaustion(t *testing.T) {
	data := payload(100)
	src := &trackedStream{Reader: bytes.NewReader(data)}
	h, err := newStreamingFileHandle(Sequential(src), 64)
	require.NoError(t, err)

	// Jumping past the end buffers everything and reports nothing.
	got, err := h.Read(500, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, h.exhausted)
	pulls := h.pulls

	got, err = h.Read(90, 64)
	require.NoError(t, err)
	assert.Equal(t, data[90:], got)
	assert.Equal(t, pulls, h.pulls)

	require.NoError(t, h.Release())
	assert.Equal(t, 1, src.closed)
}

func TestSequentialUpstreamError(t *testing.T) {
	boom := errors.New("encoder crashed")
	data := payload(10)
	src := io.NopCloser(io.MultiReader(bytes.NewReader(data), iotest.ErrReader(boom)))
	h, err := newStreamingFileHandle(Sequential(src), 64)
	require.NoError(t, err)

	_, err = h.Read(0, 20)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, boom)
	// What arrived before the failure is kept.
	assert.Equal(t, data, h.data)
}

func TestUnsupportedContent(t *testing.T) {
	_, err := newStreamingFileHandle(nil, 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = newStreamingFileHandle(Seekable(nil), 0)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = newStreamingFileHandle(Sequential(nil), 0)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReleaseOnce(t *testing.T) {
	src := &trackedStream{Reader: bytes.NewReader(payload(10))}
	h, err := newStreamingFileHandle(Sequential(src), 0)
	require.NoError(t, err)

	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
	assert.Equal(t, 1, src.closed)

	_, err = h.Read(0, 1)
	assert.ErrorIs(t, err, os.ErrClosed)
}
