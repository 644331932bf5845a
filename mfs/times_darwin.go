package mfs

import (
	"os"
	"syscall"
	"time"
)

func entryTimes(info os.FileInfo) (atime, ctime time.Time) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime(), info.ModTime()
	}
	return time.Unix(st.Atimespec.Unix()), time.Unix(st.Ctimespec.Unix())
}
