package mfs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
)

// toErrno reduces an error from the tree or a handle to the code returned to
// the kernel. Callers log the full error before reducing it.
func toErrno(err error) syscall.Errno {
	var errno syscall.Errno
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidDescent):
		return syscall.ENOENT
	case errors.Is(err, ErrUnsupported):
		return syscall.EACCES
	case errors.Is(err, os.ErrClosed):
		return syscall.EBADF
	case errors.As(err, &errno):
		return errno
	}
	return syscall.EIO
}

// Server mounts a MappedFSTree through FUSE.
type Server struct {
	Tree *MappedFSTree

	// Options are passed to the kernel as mount options. The mount is always
	// read-only.
	Options    []string
	AllowOther bool
	Debug      bool

	// EntryTimeout and AttrTimeout bound how long the kernel caches lookups
	// and attributes. Zero keeps one second.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration

	Logger *zap.Logger
}

// Mount mounts the tree at mountPath. The caller waits on the returned server
// and unmounts it.
func (s *Server) Mount(mountPath string) (*fuse.Server, error) {
	if s.Tree == nil {
		return nil, fmt.Errorf("tree is required")
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	entryTimeout := s.EntryTimeout
	if entryTimeout == 0 {
		entryTimeout = time.Second
	}
	attrTimeout := s.AttrTimeout
	if attrTimeout == 0 {
		attrTimeout = time.Second
	}

	root := &Dir{Server: s}
	server, err := fs.Mount(mountPath, root, &fs.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
		MountOptions: fuse.MountOptions{
			AllowOther: s.AllowOther,
			Debug:      s.Debug,
			FsName:     s.Tree.Root(),
			Name:       "mapfs",
			Options:    append([]string{"ro"}, s.Options...),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting %s at %s: %w", s.Tree.Root(), mountPath, err)
	}
	s.Logger.Info("mapped tree mounted",
		zap.String("source", s.Tree.Root()),
		zap.String("mountpoint", mountPath))
	return server, nil
}

// fail records err with its context and returns the code for the kernel.
func (s *Server) fail(op, path string, err error) syscall.Errno {
	errno := toErrno(err)
	if errno == syscall.ENOENT {
		s.Logger.Debug(op+" failed", zap.String("path", path), zap.Error(err))
	} else {
		s.Logger.Error(op+" failed", zap.String("path", path), zap.Error(err))
	}
	return errno
}
