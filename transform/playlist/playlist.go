// Package playlist serves .m3u8 playlists written for another device as .m3u
// playlists whose entries point at the real files behind a mapped audio tree.
package playlist

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pallavagarwal07/mapfs/mfs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type Config struct {
	// AudioRoot is the real audio library the playlists refer to.
	AudioRoot string `mapstructure:"audio-root"`
	// AudioRootPattern matches the device specific prefix of every entry,
	// e.g. "FF7F-A5BA/media/audio". What follows it up to the end of the line
	// is a path in the mapped audio tree.
	AudioRootPattern string `mapstructure:"audio-root-pattern"`
}

type Rewriter struct {
	audio *mfs.MappedFSTree
	entry *regexp.Regexp
	fs    afero.Fs
	log   *zap.Logger
}

// New returns a rewriter resolving entries against audio. fsys is where the
// playlists themselves are read from.
func New(cfg Config, audio *mfs.MappedFSTree, fsys afero.Fs, log *zap.Logger) (*Rewriter, error) {
	if cfg.AudioRootPattern == "" {
		return nil, errors.New("playlist: audio root pattern is empty")
	}
	entry, err := regexp.Compile(`(?:` + cfg.AudioRootPattern + `)([^\r\n]+)`)
	if err != nil {
		return nil, fmt.Errorf("playlist: compiling audio root pattern: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{
		audio: audio,
		entry: entry,
		fs:    fsys,
		log:   log.With(zap.String("component", "playlist")),
	}, nil
}

func (r *Rewriter) FileMap() mfs.FileMap {
	return mfs.FileMap{
		ExtensionMap: ExtensionMap,
		ContentMap:   r.ContentMap,
		SizeMap:      r.SizeMap,
	}
}

func ExtensionMap(ext string) string {
	if ext == "m3u8" {
		return "m3u"
	}
	return ext
}

func isPlaylist(name string) bool { return strings.HasSuffix(name, ".m3u8") }

func (r *Rewriter) ContentMap(realPath string) (mfs.Content, error) {
	if !isPlaylist(realPath) {
		return mfs.OpenSeekable(r.fs)(realPath)
	}
	text, err := r.rewriteFile(realPath)
	if err != nil {
		return nil, err
	}
	return mfs.InMemory(text), nil
}

// SizeMap reports the exact size of rewritten playlists. Players such as mpd
// stop reading at the declared size.
func (r *Rewriter) SizeMap(e mfs.RealEntry) (int64, error) {
	if !isPlaylist(e.Name) {
		return e.Size, nil
	}
	text, err := r.rewriteFile(e.Path)
	if err != nil {
		return 0, err
	}
	return int64(len(text)), nil
}

func (r *Rewriter) rewriteFile(realPath string) ([]byte, error) {
	text, err := afero.ReadFile(r.fs, realPath)
	if err != nil {
		return nil, err
	}
	out, err := r.Rewrite(string(text))
	if err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", realPath, err)
	}
	return []byte(out), nil
}

// Rewrite replaces every entry with the real path behind it. Entries that do
// not resolve are kept as they are.
func (r *Rewriter) Rewrite(text string) (string, error) {
	matches := r.entry.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		last = m[1]

		ref := text[m[2]:m[3]]
		e, err := r.audio.RealEntry(filepath.ToSlash(ref))
		switch {
		case err == nil:
			b.WriteString(e.Path)
		case errors.Is(err, mfs.ErrNotFound), errors.Is(err, mfs.ErrInvalidDescent):
			r.log.Warn("unresolved playlist entry", zap.String("entry", ref))
			b.WriteString(text[m[0]:m[1]])
		default:
			return "", err
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
