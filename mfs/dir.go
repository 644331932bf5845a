package mfs

import (
	"context"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Dir is a directory node of the mounted tree. Fakepath is its virtual path,
// empty for the mount root.
type Dir struct {
	fs.Inode

	Fakepath string
	Server   *Server
}

var _ = (fs.NodeGetattrer)((*Dir)(nil))
var _ = (fs.NodeReaddirer)((*Dir)(nil))
var _ = (fs.NodeLookuper)((*Dir)(nil))

func (d *Dir) Getattr(ctx context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if d.Fakepath == "" {
		// The mount root shows the real root's attributes unmapped.
		info, err := d.Server.Tree.RootInfo()
		if err != nil {
			return d.Server.fail("getattr", "/", err)
		}
		fillNativeAttr(&out.Attr, info)
		return 0
	}
	attr, err := d.Server.Tree.Stat(d.Fakepath)
	if err != nil {
		return d.Server.fail("getattr", d.Fakepath, err)
	}
	fillAttr(&out.Attr, attr)
	return 0
}

func (d *Dir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := d.Server.Tree.ReadDir(d.Fakepath)
	if err != nil {
		return nil, d.Server.fail("readdir", d.Fakepath, err)
	}
	ret := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if e.Real.IsDir {
			mode = syscall.S_IFDIR
		}
		ret = append(ret, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(ret), 0
}

func (d *Dir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	fakepath := path.Join("/", d.Fakepath, name)
	attr, err := d.Server.Tree.Stat(fakepath)
	if err != nil {
		return nil, d.Server.fail("lookup", fakepath, err)
	}
	fillAttr(&out.Attr, attr)

	var inode fs.InodeEmbedder
	mode := uint32(syscall.S_IFREG)
	if attr.Mode.IsDir() {
		inode = &Dir{Fakepath: fakepath, Server: d.Server}
		mode = syscall.S_IFDIR
	} else {
		inode = &File{Fakepath: fakepath, Server: d.Server}
	}
	return d.NewInode(ctx, inode, fs.StableAttr{Mode: mode}), 0
}
