package opus

import (
	"testing"

	"github.com/pallavagarwal07/mapfs/mfs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = `REM GENRE Rock
PERFORMER "Some Band"
FILE "Track.flac" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
FILE "Disc 2/Über.flac" WAVE
  TRACK 02 AUDIO
`

func TestRewriteCueKeepsNames(t *testing.T) {
	tc := newTranscoder(t, afero.NewMemMapFs(), func(c *Config) { c.Slug = false })
	want := `REM GENRE Rock
PERFORMER "Some Band"
FILE "Track.opus" WAVE
  TRACK 01 AUDIO
    INDEX 01 00:00:00
FILE "Disc 2/Über.opus" WAVE
  TRACK 02 AUDIO
`
	assert.Equal(t, want, tc.RewriteCue(sheet))
}

func TestRewriteCueSlugs(t *testing.T) {
	tc := newTranscoder(t, afero.NewMemMapFs(), nil)
	got := tc.RewriteCue(sheet)
	assert.Contains(t, got, `FILE "track.opus" WAVE`)
	assert.Contains(t, got, `FILE "disc-2/ueber.opus" WAVE`)
	assert.Contains(t, got, `PERFORMER "Some Band"`)
}

func TestRewriteCueWithoutFiles(t *testing.T) {
	tc := newTranscoder(t, afero.NewMemMapFs(), nil)
	assert.Equal(t, "REM nothing here\n", tc.RewriteCue("REM nothing here\n"))
}

func TestCueThroughTree(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/src/Album", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/src/Album/Album.cue", []byte("FILE \"Track.flac\" WAVE\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/src/Album/Track.flac", []byte("flac"), 0o644))

	tc := newTranscoder(t, fsys, func(c *Config) { c.Slug = false })
	tree, err := mfs.NewMappedFSTree("/src",
		mfs.WithFs(fsys), mfs.WithNameMap(tc.NameMap), mfs.WithFileMap(tc.FileMap()))
	require.NoError(t, err)

	want := "FILE \"Track.opus\" WAVE\n"
	attr, err := tree.Stat("/Album/Album.cue")
	require.NoError(t, err)
	assert.EqualValues(t, len(want), attr.Size)

	h, err := tree.Open("/Album/Album.cue")
	require.NoError(t, err)
	assert.Equal(t, mfs.KindInMemory, h.Kind())
	got, err := h.Read(0, 4096)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	require.NoError(t, h.Release())
}
