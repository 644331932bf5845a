// Package opus maps a FLAC music library to an Opus one: .flac files are
// renamed to .opus and transcoded on open by an external encoder, and cue
// sheets are rewritten to reference the renamed tracks.
package opus

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/pallavagarwal07/mapfs/mfs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholders expanded in Config.Command.
const (
	InputPlaceholder   = "{input}"
	BitratePlaceholder = "{bitrate}"
)

type Config struct {
	// Command is the encoder invocation. It must write Opus to stdout.
	Command []string `mapstructure:"command"`
	Bitrate string   `mapstructure:"bitrate"`
	// SizeSlack is added to the FLAC size to get the declared Opus size.
	SizeSlack int64 `mapstructure:"size-slack"`
	// Slug turns names into lower-case ASCII slugs.
	Slug          bool `mapstructure:"slug"`
	MaxNameLength int  `mapstructure:"max-name-length"`
}

func DefaultConfig() Config {
	return Config{
		Command: []string{"ffmpeg", "-i", InputPlaceholder, "-b:a", BitratePlaceholder,
			"-map_metadata", "0", "-f", "opus", "pipe:1"},
		Bitrate:   "128k",
		SizeSlack: 1000,
		Slug:      true,
		// Leaves room for the extension on filesystems limited to 256 bytes.
		MaxNameLength: 250,
	}
}

type Transcoder struct {
	cfg Config
	fs  afero.Fs
	log *zap.Logger
}

func New(cfg Config, fsys afero.Fs, log *zap.Logger) (*Transcoder, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("opus: encoder command is empty")
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = DefaultConfig().MaxNameLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Transcoder{cfg: cfg, fs: fsys, log: log.With(zap.String("component", "opus"))}, nil
}

// FileMap bundles the transcoder's transforms for a MappedFSTree.
func (t *Transcoder) FileMap() mfs.FileMap {
	return mfs.FileMap{
		ExtensionMap: ExtensionMap,
		ContentMap:   t.ContentMap,
		SizeMap:      t.SizeMap,
	}
}

func ExtensionMap(ext string) string {
	if ext == "flac" {
		return "opus"
	}
	return ext
}

var (
	transliterations = strings.NewReplacer(
		"Ü", "UE", "ü", "ue",
		"Ä", "AE", "ä", "ae",
		"Ö", "OE", "ö", "oe",
		"ß", "ss",
	)
	disallowed = regexp.MustCompile(`[^a-z0-9]+`)
)

// NameMap slugs stem when slugging is enabled. The result is never empty.
func (t *Transcoder) NameMap(stem string) string {
	if !t.cfg.Slug {
		return stem
	}
	s := transliterations.Replace(stem)
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}
	s = disallowed.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > t.cfg.MaxNameLength {
		s = strings.TrimRight(s[:t.cfg.MaxNameLength], "-")
	}
	if s == "" {
		return "-"
	}
	return s
}

func (t *Transcoder) ContentMap(realPath string) (mfs.Content, error) {
	switch filepath.Ext(realPath) {
	case ".flac":
		return t.transcode(realPath)
	case ".cue":
		text, err := afero.ReadFile(t.fs, realPath)
		if err != nil {
			return nil, err
		}
		return mfs.InMemory([]byte(t.RewriteCue(string(text)))), nil
	}
	return mfs.OpenSeekable(t.fs)(realPath)
}

// SizeMap over-estimates transcoded files by the configured slack. Cue sheets
// are rewritten to learn their exact size.
func (t *Transcoder) SizeMap(e mfs.RealEntry) (int64, error) {
	switch filepath.Ext(e.Name) {
	case ".flac":
		return e.Size + t.cfg.SizeSlack, nil
	case ".cue":
		text, err := afero.ReadFile(t.fs, e.Path)
		if err != nil {
			return 0, err
		}
		return int64(len(t.RewriteCue(string(text)))), nil
	}
	return e.Size, nil
}

func (t *Transcoder) command(input string) []string {
	args := make([]string, len(t.cfg.Command))
	for i, arg := range t.cfg.Command {
		arg = strings.ReplaceAll(arg, InputPlaceholder, input)
		args[i] = strings.ReplaceAll(arg, BitratePlaceholder, t.cfg.Bitrate)
	}
	return args
}

func (t *Transcoder) transcode(realPath string) (mfs.Content, error) {
	args := t.command(realPath)
	cmd := exec.Command(args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting encoder for %s: %w", realPath, err)
	}
	t.log.Debug("encoder started", zap.String("input", realPath), zap.Int("pid", cmd.Process.Pid))
	return mfs.Sequential(&encoderOutput{ReadCloser: stdout, cmd: cmd, input: realPath, log: t.log}), nil
}

// encoderOutput is the stdout of a running encoder. Closing it closes the pipe,
// which stops the encoder on its next write, and reaps the process in the
// background.
type encoderOutput struct {
	io.ReadCloser
	cmd   *exec.Cmd
	input string
	log   *zap.Logger
}

func (o *encoderOutput) Close() error {
	err := o.ReadCloser.Close()
	go func() {
		if err := o.cmd.Wait(); err != nil {
			o.log.Debug("encoder exited", zap.String("input", o.input), zap.Error(err))
		}
	}()
	return err
}
