package mfs

import (
	"context"
	"fmt"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// File is a regular file node of the mounted tree.
type File struct {
	fs.Inode

	Fakepath string
	Server   *Server
}

// FileHandle is one open descriptor of a File. The kernel may issue reads on
// the same descriptor concurrently, so access to the streaming handle is
// serialized here.
type FileHandle struct {
	file *File

	mu     sync.Mutex
	stream *StreamingFileHandle
}

var _ = (fs.NodeGetattrer)((*File)(nil))
var _ = (fs.NodeOpener)((*File)(nil))
var _ = (fs.NodeSetattrer)((*File)(nil))

var _ = (fs.FileReader)((*FileHandle)(nil))
var _ = (fs.FileReleaser)((*FileHandle)(nil))
var _ = (fs.FileGetattrer)((*FileHandle)(nil))

const writeFlags = unix.O_TRUNC | unix.O_APPEND | unix.O_CREAT

func (f *File) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := f.Server.Tree.Stat(f.Fakepath)
	if err != nil {
		return f.Server.fail("getattr", f.Fakepath, err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (f *File) Setattr(
	ctx context.Context, _ fs.FileHandle, _ *fuse.SetAttrIn, _ *fuse.AttrOut) syscall.Errno {
	return f.Server.fail("setattr", f.Fakepath, fmt.Errorf("%w: setattr", ErrUnsupported))
}

func (f *File) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&unix.O_ACCMODE != unix.O_RDONLY || flags&writeFlags != 0 {
		return nil, 0, f.Server.fail("open", f.Fakepath,
			fmt.Errorf("%w: open with write intent (flags %#o)", ErrUnsupported, flags))
	}
	stream, err := f.Server.Tree.Open(f.Fakepath)
	if err != nil {
		return nil, 0, f.Server.fail("open", f.Fakepath, err)
	}
	return &FileHandle{file: f, stream: stream}, 0, 0
}

func (fh *FileHandle) Read(
	_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	data, err := fh.stream.Read(off, len(dest))
	if err != nil {
		return nil, fh.file.Server.fail("read", fh.file.Fakepath, err)
	}
	n := copy(dest, data)
	return fuse.ReadResultData(dest[:n]), 0
}

func (fh *FileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	return fh.file.Getattr(ctx, fh, out)
}

func (fh *FileHandle) Release(ctx context.Context) syscall.Errno {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	if err := fh.stream.Release(); err != nil {
		// The descriptor is gone either way.
		fh.file.Server.Logger.Warn("closing mapped content failed",
			zap.String("path", fh.file.Fakepath), zap.Error(err))
	}
	return 0
}
