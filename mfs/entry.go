package mfs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// RealEntry is a snapshot of a node in the backing tree. It is never cached:
// every resolution step reads the directory again.
type RealEntry struct {
	// Path is the absolute path in the backing filesystem.
	Path  string
	Name  string
	IsDir bool
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// newRealEntry builds an entry from a directory listing result. Symlinks are
// followed; a dangling link is reported with its own lstat information.
func newRealEntry(fsys afero.Fs, dir string, info os.FileInfo) RealEntry {
	path := filepath.Join(dir, info.Name())
	if info.Mode()&os.ModeSymlink != 0 {
		if target, err := fsys.Stat(path); err == nil {
			info = target
		}
	}
	return entryFromInfo(path, info)
}

func statEntry(fsys afero.Fs, path string) (RealEntry, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return RealEntry{}, err
	}
	return entryFromInfo(path, info), nil
}

func entryFromInfo(path string, info os.FileInfo) RealEntry {
	atime, ctime := entryTimes(info)
	return RealEntry{
		Path:  path,
		Name:  filepath.Base(path),
		IsDir: info.IsDir(),
		Size:  info.Size(),
		Atime: atime,
		Mtime: info.ModTime(),
		Ctime: ctime,
	}
}
