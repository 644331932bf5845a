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
	return time.Unix(st.Atim.Unix()), time.Unix(st.Ctim.Unix())
}
