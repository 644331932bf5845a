package mfs

import (
	"io/fs"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
)

func syscallModeFromFs(mode fs.FileMode) uint32 {
	ret := uint32(mode) & 0777
	switch true {
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		ret |= syscall.S_IFCHR
	case mode&fs.ModeDevice != 0:
		ret |= syscall.S_IFBLK
	case mode&fs.ModeDir != 0:
		ret |= syscall.S_IFDIR
	case mode&fs.ModeNamedPipe != 0:
		ret |= syscall.S_IFIFO
	case mode&fs.ModeSymlink != 0:
		ret |= syscall.S_IFLNK
	case mode&fs.ModeSocket != 0:
		ret |= syscall.S_IFSOCK
	default:
		ret |= syscall.S_IFREG
	}

	if mode&fs.ModeSetgid != 0 {
		ret |= syscall.S_ISGID
	}
	if mode&fs.ModeSetuid != 0 {
		ret |= syscall.S_ISUID
	}
	if mode&fs.ModeSticky != 0 {
		ret |= syscall.S_ISVTX
	}
	return ret
}

func fillAttr(out *fuse.Attr, a Attr) {
	out.Mode = syscallModeFromFs(a.Mode)
	out.Nlink = a.Nlink
	out.Size = a.Size
	out.Blocks = (a.Size + 511) / 512
	out.SetTimes(&a.Atime, &a.Mtime, &a.Ctime)
}

// fillNativeAttr copies attributes of a real node without mapping them.
func fillNativeAttr(out *fuse.Attr, info fs.FileInfo) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		out.FromStat(st)
		return
	}
	mtime := info.ModTime()
	out.Mode = syscallModeFromFs(info.Mode())
	out.Size = uint64(info.Size())
	out.SetTimes(&mtime, &mtime, &mtime)
}
