// Package config merges mapfs configuration from flags, MAPFS_ environment
// variables and an optional config file.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dsnet/golib/unitconv"
	"github.com/pallavagarwal07/mapfs/internal/logger"
	"github.com/pallavagarwal07/mapfs/mfs"
	"github.com/pallavagarwal07/mapfs/transform/opus"
	"github.com/pallavagarwal07/mapfs/transform/playlist"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const (
	EnvPrefix = "MAPFS"
	// ConfigFileFlag names the flag holding the path of the config file.
	ConfigFileFlag = "config"
)

type AppConfig struct {
	Log      logger.Config   `mapstructure:"log"`
	Mount    MountConfig     `mapstructure:"mount"`
	Opus     opus.Config     `mapstructure:"opus"`
	Playlist playlist.Config `mapstructure:"playlist"`
}

type MountConfig struct {
	AllowOther   bool          `mapstructure:"allow-other"`
	Debug        bool          `mapstructure:"debug"`
	EntryTimeout time.Duration `mapstructure:"entry-timeout"`
	AttrTimeout  time.Duration `mapstructure:"attr-timeout"`
	// BlockSize accepts IEC prefixes, e.g. "1Mi" or "512Ki".
	BlockSize string   `mapstructure:"block-size"`
	Options   []string `mapstructure:"options"`
}

// BlockSizeBytes parses BlockSize.
func (m MountConfig) BlockSizeBytes() (int, error) {
	v, err := unitconv.ParsePrefix(m.BlockSize, unitconv.IEC)
	if err != nil {
		return 0, fmt.Errorf("mount.block-size %q: %w", m.BlockSize, err)
	}
	if v < 1 {
		return 0, fmt.Errorf("mount.block-size %q must be at least one byte", m.BlockSize)
	}
	return int(v), nil
}

// RegisterFlags defines every configuration key as a flag. The flag defaults
// are the configuration defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	oc := opus.DefaultConfig()

	flags.String(ConfigFileFlag, "", "Path to a config file (any format viper reads: toml, yaml, json...).")

	flags.String("log.type", string(logger.StdErr), fmt.Sprintf("Where to log: %v.", logger.SupportedLogTypes))
	flags.String("log.file", "", "Log file, required when log.type is logfile.")
	flags.Int8("log.level", 3, "Log level: 0 (error), 1 (warn), 3 (info) or 5 (debug).")
	flags.Int("log.max-size", 100, "Size in megabytes at which the log file is rotated.")
	flags.Int("log.num-rotated-files", 5, "Number of rotated log files to keep.")
	flags.Bool("log.developer", false, "Use zap's development logger at debug level.")

	flags.Bool("mount.allow-other", false, "Let other users access the mount.")
	flags.Bool("mount.debug", false, "Log every FUSE request.")
	flags.Duration("mount.entry-timeout", time.Second, "How long the kernel caches name lookups.")
	flags.Duration("mount.attr-timeout", time.Second, "How long the kernel caches attributes.")
	flags.String("mount.block-size", "1Mi", "How much is read from a transcoder at a time.")
	flags.StringSlice("mount.options", nil, "Extra mount options.")

	flags.StringSlice("opus.command", oc.Command,
		fmt.Sprintf("Encoder command writing Opus to stdout. %s and %s are substituted.",
			opus.InputPlaceholder, opus.BitratePlaceholder))
	flags.String("opus.bitrate", oc.Bitrate, "Encoder bitrate.")
	flags.Int64("opus.size-slack", oc.SizeSlack, "Bytes added to the FLAC size to get the declared Opus size.")
	flags.Bool("opus.slug", oc.Slug, "Turn names into lower-case ASCII slugs.")
	flags.Int("opus.max-name-length", oc.MaxNameLength, "Maximum length of a slugged name.")

	flags.String("playlist.audio-root", "", "Real audio library the playlists refer to.")
	flags.String("playlist.audio-root-pattern", "", "Pattern matching the device specific prefix of playlist entries.")
}

// Load combines the configuration sources. The precedence is: (1) flags set on
// the command line, (2) MAPFS_ environment variables, (3) the config file,
// (4) flag defaults.
func Load(flags *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("unable to parse command line flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Last, as the file itself may come from the environment.
	if file := v.GetString(ConfigFileFlag); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config from file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %w", err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfig performs static checks only. It does not look at the
// filesystem.
func ValidateConfig(cfg AppConfig) error {
	var errs error

	switch {
	case cfg.Log.Developer:
	case !slices.Contains(logger.SupportedLogTypes, cfg.Log.Type):
		errs = multierr.Append(errs, fmt.Errorf("log.type %q is invalid (supported: %v)", cfg.Log.Type, logger.SupportedLogTypes))
	case cfg.Log.Type == logger.LogFile && cfg.Log.File == "":
		errs = multierr.Append(errs, fmt.Errorf("log.type is %s but no log.file was specified", logger.LogFile))
	}

	if _, err := cfg.Mount.BlockSizeBytes(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.Mount.EntryTimeout < 0 || cfg.Mount.AttrTimeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("mount timeouts must not be negative"))
	}
	if slices.Contains(cfg.Mount.Options, "rw") {
		errs = multierr.Append(errs, fmt.Errorf("mount.options: %w: rw", mfs.ErrUnsupported))
	}

	if len(cfg.Opus.Command) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("opus.command is empty"))
	}
	if cfg.Opus.SizeSlack < 0 {
		errs = multierr.Append(errs, fmt.Errorf("opus.size-slack must not be negative"))
	}
	return errs
}

// ValidatePlaylist checks the settings only the playlist view needs.
func ValidatePlaylist(cfg playlist.Config) error {
	var errs error
	if cfg.AudioRoot == "" {
		errs = multierr.Append(errs, fmt.Errorf("playlist.audio-root is required"))
	}
	if cfg.AudioRootPattern == "" {
		errs = multierr.Append(errs, fmt.Errorf("playlist.audio-root-pattern is required"))
	}
	return errs
}
