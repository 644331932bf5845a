package mfs

import "strings"

// MapFileName derives the virtual name of a regular file. Only the last dot
// separates stem from extension. Hidden files, whose only dot is the leading
// one, keep the dot and never see the extension map.
func MapFileName(name string, nameMap NameMap, extMap ExtensionMap) string {
	dot := strings.LastIndexByte(name, '.')
	switch {
	case dot == 0:
		return "." + nameMap(name[1:])
	case dot < 0:
		return nameMap(name)
	}
	return nameMap(name[:dot]) + "." + extMap(name[dot+1:])
}

// MapDirName derives the virtual name of a directory.
func MapDirName(name string, nameMap NameMap) string {
	if strings.LastIndexByte(name, '.') == 0 {
		return "." + nameMap(name[1:])
	}
	return nameMap(name)
}

// splitPath turns a virtual path into its non-empty components.
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
