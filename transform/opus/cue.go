package opus

import (
	"regexp"
	"strings"

	"github.com/pallavagarwal07/mapfs/mfs"
)

var cueFileRef = regexp.MustCompile(`FILE\s+"([^"]+)"`)

// RewriteCue replaces the target of every FILE command with its name in the
// mapped tree. Everything else is left as is.
func (t *Transcoder) RewriteCue(text string) string {
	matches := cueFileRef.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[2]])
		b.WriteString(t.mapReference(text[m[2]:m[3]]))
		last = m[3]
	}
	b.WriteString(text[last:])
	return b.String()
}

// mapReference maps a relative reference component by component: leading
// components are directories, the last one a file.
func (t *Transcoder) mapReference(ref string) string {
	parts := strings.Split(ref, "/")
	n := len(parts) - 1
	for i, part := range parts[:n] {
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts[i] = mfs.MapDirName(part, t.NameMap)
	}
	parts[n] = mfs.MapFileName(parts[n], t.NameMap, ExtensionMap)
	return strings.Join(parts, "/")
}
