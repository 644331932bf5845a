package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pallavagarwal07/mapfs/internal/logger"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, logger.StdErr, cfg.Log.Type)
	assert.EqualValues(t, 3, cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Mount.EntryTimeout)
	assert.Equal(t, time.Second, cfg.Mount.AttrTimeout)
	assert.False(t, cfg.Mount.AllowOther)
	assert.Equal(t, "128k", cfg.Opus.Bitrate)
	assert.EqualValues(t, 1000, cfg.Opus.SizeSlack)
	assert.True(t, cfg.Opus.Slug)
	assert.Equal(t, "ffmpeg", cfg.Opus.Command[0])

	size, err := cfg.Mount.BlockSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 1<<20, size)
}

func TestLoadPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mapfs.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
log:
  level: 5
mount:
  block-size: 64Ki
  allow-other: true
opus:
  bitrate: 96k
playlist:
  audio-root: /from/file
`), 0o644))

	t.Setenv("MAPFS_OPUS_BITRATE", "160k")
	t.Setenv("MAPFS_PLAYLIST_AUDIO_ROOT_PATTERN", "FF7F-A5BA/media/audio/")

	cfg, err := Load(newFlags(t, "--config", file, "--log.level", "1"))
	require.NoError(t, err)

	// Flag beats file.
	assert.EqualValues(t, 1, cfg.Log.Level)
	// Environment beats file.
	assert.Equal(t, "160k", cfg.Opus.Bitrate)
	// File beats defaults.
	assert.True(t, cfg.Mount.AllowOther)
	assert.Equal(t, "/from/file", cfg.Playlist.AudioRoot)
	assert.Equal(t, "FF7F-A5BA/media/audio/", cfg.Playlist.AudioRootPattern)

	size, err := cfg.Mount.BlockSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, 64<<10, size)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.toml")))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(*cfg))

	bad := *cfg
	bad.Log.Type = "syslog"
	bad.Mount.BlockSize = "lots"
	bad.Mount.Options = []string{"rw"}
	bad.Opus.Command = nil
	err = ValidateConfig(bad)
	require.Error(t, err)
	assert.ErrorContains(t, err, "log.type")
	assert.ErrorContains(t, err, "mount.block-size")
	assert.ErrorContains(t, err, "rw")
	assert.ErrorContains(t, err, "opus.command")

	bad = *cfg
	bad.Log.Type = logger.LogFile
	assert.ErrorContains(t, ValidateConfig(bad), "log.file")

	bad = *cfg
	bad.Mount.BlockSize = "0"
	assert.Error(t, ValidateConfig(bad))
}

func TestValidatePlaylist(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	err = ValidatePlaylist(cfg.Playlist)
	assert.ErrorContains(t, err, "audio-root is required")
	assert.ErrorContains(t, err, "audio-root-pattern is required")

	cfg.Playlist.AudioRoot = "/music"
	cfg.Playlist.AudioRootPattern = "sd/audio/"
	assert.NoError(t, ValidatePlaylist(cfg.Playlist))
}
