package mfs

import (
	"io"

	"github.com/spf13/afero"
)

// NameMap maps the stem of a real entry name to its virtual stem. It must be
// deterministic: resolution re-derives virtual names on every call instead of
// keeping a reverse index.
type NameMap func(stem string) string

// ExtensionMap maps a real file extension (without the dot) to its virtual
// extension. It is never applied to directories.
type ExtensionMap func(ext string) string

// ContentMap produces the content of the virtual file backed by the real file
// at realPath. It may have side effects, such as spawning a process.
type ContentMap func(realPath string) (Content, error)

// SizeMap returns the size reported for the virtual file backed by e. The value
// must be at least the number of bytes the ContentMap eventually produces.
type SizeMap func(e RealEntry) (int64, error)

// Content is what a ContentMap hands back. The set of variants is closed:
// InMemory, Seekable and Sequential are the only constructors.
type Content interface {
	contentKind() ContentKind
}

type ContentKind int

const (
	KindInMemory ContentKind = iota + 1
	KindSeekable
	KindSequential
)

func (k ContentKind) String() string {
	switch k {
	case KindInMemory:
		return "in-memory"
	case KindSeekable:
		return "seekable"
	case KindSequential:
		return "sequential"
	}
	return "unknown"
}

type inMemory struct{ data []byte }

type seekable struct{ stream io.ReadSeekCloser }

type sequential struct{ stream io.ReadCloser }

func (inMemory) contentKind() ContentKind   { return KindInMemory }
func (seekable) contentKind() ContentKind   { return KindSeekable }
func (sequential) contentKind() ContentKind { return KindSequential }

// InMemory is content that is fully materialized when the file is opened.
func InMemory(data []byte) Content { return inMemory{data: data} }

// Seekable is content backed by a stream that can be repositioned freely, such
// as a real file opened for reading. The handle closes it on release.
func Seekable(stream io.ReadSeekCloser) Content { return seekable{stream: stream} }

// Sequential is content produced by a forward-only stream, such as the stdout
// of a transcoding process. The handle closes it on release.
func Sequential(stream io.ReadCloser) Content { return sequential{stream: stream} }

// FileMap bundles the transforms applied to regular files. Nil fields are
// replaced by the defaults when the tree is built; the bundle is not modified
// afterwards.
type FileMap struct {
	ExtensionMap ExtensionMap
	ContentMap   ContentMap
	SizeMap      SizeMap
}

// IdentityName leaves names untouched.
func IdentityName(s string) string { return s }

// IdentityExtension leaves extensions untouched.
func IdentityExtension(ext string) string { return ext }

// RealSize reports the size of the real file.
func RealSize(e RealEntry) (int64, error) { return e.Size, nil }

// ReadWhole returns a ContentMap that reads the whole real file into memory.
func ReadWhole(fsys afero.Fs) ContentMap {
	return func(realPath string) (Content, error) {
		data, err := afero.ReadFile(fsys, realPath)
		if err != nil {
			return nil, err
		}
		return InMemory(data), nil
	}
}

// OpenSeekable returns a ContentMap that serves the real file as is, through a
// seekable file handle.
func OpenSeekable(fsys afero.Fs) ContentMap {
	return func(realPath string) (Content, error) {
		f, err := fsys.Open(realPath)
		if err != nil {
			return nil, err
		}
		return Seekable(f), nil
	}
}

func (m FileMap) withDefaults(fsys afero.Fs) FileMap {
	if m.ExtensionMap == nil {
		m.ExtensionMap = IdentityExtension
	}
	if m.ContentMap == nil {
		m.ContentMap = ReadWhole(fsys)
	}
	if m.SizeMap == nil {
		m.SizeMap = RealSize
	}
	return m
}
