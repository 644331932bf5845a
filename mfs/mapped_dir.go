package mfs

import (
	"github.com/spf13/afero"
)

// ResolveStatus is the outcome of walking a virtual path.
type ResolveStatus int

const (
	Found ResolveStatus = iota
	NotFound
	InvalidDescent
)

func (s ResolveStatus) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case InvalidDescent:
		return "invalid descent"
	}
	return "unknown"
}

// Resolution is the result of MappedDir.Resolve. For InvalidDescent, Entry is
// the file that was addressed as a directory.
type Resolution struct {
	Status ResolveStatus
	Entry  RealEntry
}

// MappedDir is a real directory seen through a name map and a file map. It
// holds no index of its children: every call lists the real directory again.
type MappedDir struct {
	RealPath string
	NameMap  NameMap
	FileMap  FileMap
	Fs       afero.Fs
}

// children lists the real directory in the order the backing store returns
// entries.
func (d MappedDir) children() ([]RealEntry, error) {
	f, err := d.Fs.Open(d.RealPath)
	if err != nil {
		return nil, upstream("open", d.RealPath, err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, upstream("readdir", d.RealPath, err)
	}
	entries := make([]RealEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, newRealEntry(d.Fs, d.RealPath, info))
	}
	return entries, nil
}

// VirtualName applies the directory or file naming rule to e.
func (d MappedDir) VirtualName(e RealEntry) string {
	if e.IsDir {
		return MapDirName(e.Name, d.NameMap)
	}
	return MapFileName(e.Name, d.NameMap, d.FileMap.ExtensionMap)
}

// VirtualEntry pairs a child's virtual name with the real entry behind it.
type VirtualEntry struct {
	Name string
	Real RealEntry
}

// Entries lists the directory's children under their virtual names.
func (d MappedDir) Entries() ([]VirtualEntry, error) {
	entries, err := d.children()
	if err != nil {
		return nil, err
	}
	out := make([]VirtualEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, VirtualEntry{Name: d.VirtualName(e), Real: e})
	}
	return out, nil
}

// ChildNames returns the virtual names of the directory's children.
func (d MappedDir) ChildNames() ([]string, error) {
	entries, err := d.Entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

func (d MappedDir) child(realPath string) MappedDir {
	return MappedDir{RealPath: realPath, NameMap: d.NameMap, FileMap: d.FileMap, Fs: d.Fs}
}

// Resolve walks components, one per directory level, and returns the real
// entry at the tail. An empty component list never matches.
func (d MappedDir) Resolve(components []string) (Resolution, error) {
	if len(components) == 0 {
		return Resolution{Status: NotFound}, nil
	}
	entries, err := d.children()
	if err != nil {
		return Resolution{}, err
	}
	for _, e := range entries {
		if d.VirtualName(e) != components[0] {
			continue
		}
		if len(components) == 1 {
			return Resolution{Status: Found, Entry: e}, nil
		}
		if !e.IsDir {
			return Resolution{Status: InvalidDescent, Entry: e}, nil
		}
		return d.child(e.Path).Resolve(components[1:])
	}
	return Resolution{Status: NotFound}, nil
}
