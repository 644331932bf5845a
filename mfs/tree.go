package mfs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultBlockSize is how much a Sequential handle pulls from its producer at a
// time.
const DefaultBlockSize = 1 << 20

// Attr are the attributes of a virtual entry.
type Attr struct {
	// Mode carries the type bits (os.ModeDir for directories) and the fixed
	// read-only permissions.
	Mode  os.FileMode
	Nlink uint32
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// MappedFSTree binds a real root directory to a name map and a file map and
// answers metadata, listing and open requests for virtual paths. It keeps no
// state about the real tree between calls.
type MappedFSTree struct {
	root      string
	fs        afero.Fs
	nameMap   NameMap
	fileMap   FileMap
	blockSize int
	log       *zap.Logger

	rootDir MappedDir
}

type Option func(*MappedFSTree)

// WithFs sets the backing filesystem. The default is the OS filesystem. The
// tree wraps it read-only.
func WithFs(fsys afero.Fs) Option {
	return func(t *MappedFSTree) { t.fs = fsys }
}

func WithNameMap(m NameMap) Option {
	return func(t *MappedFSTree) { t.nameMap = m }
}

func WithFileMap(m FileMap) Option {
	return func(t *MappedFSTree) { t.fileMap = m }
}

// WithBlockSize sets the pull size of Sequential handles. Values below one
// keep the default.
func WithBlockSize(n int) Option {
	return func(t *MappedFSTree) {
		if n > 0 {
			t.blockSize = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *MappedFSTree) { t.log = l }
}

// NewMappedFSTree returns a tree rooted at the real directory root.
func NewMappedFSTree(root string, opts ...Option) (*MappedFSTree, error) {
	t := &MappedFSTree{
		fs:        afero.NewOsFs(),
		nameMap:   IdentityName,
		blockSize: DefaultBlockSize,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.nameMap == nil {
		t.nameMap = IdentityName
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", root, err)
	}
	t.root = abs
	t.fs = afero.NewReadOnlyFs(t.fs)

	info, err := t.fs.Stat(t.root)
	if err != nil {
		return nil, fmt.Errorf("accessing root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", t.root)
	}

	t.fileMap = t.fileMap.withDefaults(t.fs)
	t.rootDir = MappedDir{RealPath: t.root, NameMap: t.nameMap, FileMap: t.fileMap, Fs: t.fs}
	return t, nil
}

// Root returns the absolute real path of the tree's root.
func (t *MappedFSTree) Root() string { return t.root }

// Fs returns the read-only view of the backing filesystem.
func (t *MappedFSTree) Fs() afero.Fs { return t.fs }

// RootInfo returns the real root's own attributes, without any mapping.
func (t *MappedFSTree) RootInfo() (os.FileInfo, error) {
	if l, ok := t.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(t.root)
		return info, err
	}
	return t.fs.Stat(t.root)
}

// RealEntry resolves a virtual path to the real entry behind it. The root path
// resolves to the root directory itself.
func (t *MappedFSTree) RealEntry(virtualPath string) (RealEntry, error) {
	components := splitPath(virtualPath)
	if len(components) == 0 {
		e, err := statEntry(t.fs, t.root)
		if err != nil {
			return RealEntry{}, upstream("stat", t.root, err)
		}
		return e, nil
	}

	res, err := t.rootDir.Resolve(components)
	if err != nil {
		return RealEntry{}, err
	}
	switch res.Status {
	case Found:
		return res.Entry, nil
	case InvalidDescent:
		return RealEntry{}, fmt.Errorf("%w: %s (%s is a file)", ErrInvalidDescent, virtualPath, res.Entry.Path)
	default:
		return RealEntry{}, fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}
}

// Stat returns the virtual attributes of the entry at virtualPath.
func (t *MappedFSTree) Stat(virtualPath string) (Attr, error) {
	e, err := t.RealEntry(virtualPath)
	if err != nil {
		return Attr{}, err
	}

	attr := Attr{
		Atime: floorSecond(e.Atime),
		Mtime: floorSecond(e.Mtime),
		Ctime: floorSecond(e.Ctime),
	}
	if e.IsDir {
		attr.Mode = os.ModeDir | 0o555
		// Not the real subdirectory count.
		attr.Nlink = 2
		return attr, nil
	}

	size, err := t.fileMap.SizeMap(e)
	if err != nil {
		return Attr{}, upstream("size", e.Path, err)
	}
	if size < 0 {
		size = 0
	}
	attr.Mode = 0o444
	attr.Nlink = 1
	attr.Size = uint64(size)
	return attr, nil
}

// ReadDir lists the directory at virtualPath, in the order the backing store
// yields its entries.
func (t *MappedFSTree) ReadDir(virtualPath string) ([]VirtualEntry, error) {
	dir, err := t.dir(virtualPath)
	if err != nil {
		return nil, err
	}
	return dir.Entries()
}

// ChildNames lists the virtual names of the directory at virtualPath, in the
// order the backing store yields them.
func (t *MappedFSTree) ChildNames(virtualPath string) ([]string, error) {
	dir, err := t.dir(virtualPath)
	if err != nil {
		return nil, err
	}
	return dir.ChildNames()
}

func (t *MappedFSTree) dir(virtualPath string) (MappedDir, error) {
	if len(splitPath(virtualPath)) == 0 {
		return t.rootDir, nil
	}
	e, err := t.RealEntry(virtualPath)
	if err != nil {
		return MappedDir{}, err
	}
	if !e.IsDir {
		return MappedDir{}, fmt.Errorf("%w: %s is not a directory", ErrInvalidDescent, virtualPath)
	}
	return t.rootDir.child(e.Path), nil
}

// Open runs the content map for the file at virtualPath and returns a handle
// serving its bytes. Every call starts a fresh content map invocation; the
// caller must Release the handle.
func (t *MappedFSTree) Open(virtualPath string) (*StreamingFileHandle, error) {
	e, err := t.RealEntry(virtualPath)
	if err != nil {
		return nil, err
	}
	if e.IsDir {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupported, virtualPath)
	}

	content, err := t.fileMap.ContentMap(e.Path)
	if err != nil {
		return nil, upstream("map content of", e.Path, err)
	}
	h, err := newStreamingFileHandle(content, t.blockSize)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", virtualPath, err)
	}
	t.log.Debug("opened mapped file",
		zap.String("path", virtualPath),
		zap.String("real", e.Path),
		zap.Stringer("content", h.Kind()))
	return h, nil
}

func floorSecond(ts time.Time) time.Time {
	return time.Unix(ts.Unix(), 0)
}
