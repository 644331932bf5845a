package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dsnet/golib/unitconv"
	"github.com/pallavagarwal07/mapfs/internal/config"
	"github.com/pallavagarwal07/mapfs/internal/logger"
	"github.com/pallavagarwal07/mapfs/mfs"
	"github.com/pallavagarwal07/mapfs/transform/opus"
	"github.com/pallavagarwal07/mapfs/transform/playlist"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// treeBuilder returns the tree to mount for source. opts carry the settings
// every view shares.
type treeBuilder func(cfg *config.AppConfig, log *zap.Logger, source string, opts []mfs.Option) (*mfs.MappedFSTree, error)

func newMountCmd(use, short string, build treeBuilder) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <source> <mountpoint>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			l, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("unable to initialize logger: %w", err)
			}
			defer l.Sync()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, l.Logger.With(zap.String("view", use)), args[0], args[1], build)
		},
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, source, mountpoint string, build treeBuilder) error {
	blockSize, err := cfg.Mount.BlockSizeBytes()
	if err != nil {
		return err
	}
	tree, err := build(cfg, log, source, []mfs.Option{
		mfs.WithBlockSize(blockSize),
		mfs.WithLogger(log),
	})
	if err != nil {
		return err
	}

	srv := &mfs.Server{
		Tree:         tree,
		Options:      cfg.Mount.Options,
		AllowOther:   cfg.Mount.AllowOther,
		Debug:        cfg.Mount.Debug,
		EntryTimeout: cfg.Mount.EntryTimeout,
		AttrTimeout:  cfg.Mount.AttrTimeout,
		Logger:       log,
	}
	server, err := srv.Mount(mountpoint)
	if err != nil {
		return err
	}
	log.Info("serving",
		zap.String("source", tree.Root()),
		zap.String("mountpoint", mountpoint),
		zap.String("blockSize", unitconv.FormatPrefix(float64(blockSize), unitconv.IEC, 0)+"B"))

	g, ctx := errgroup.WithContext(ctx)
	unmounted := make(chan struct{})
	g.Go(func() error {
		server.Wait()
		close(unmounted)
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info("unmounting", zap.String("mountpoint", mountpoint))
			return server.Unmount()
		case <-unmounted:
			return nil
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("unmounted, exiting")
	return nil
}

func newMirrorCmd() *cobra.Command {
	return newMountCmd("mirror", "Mirror a directory unchanged",
		func(_ *config.AppConfig, _ *zap.Logger, source string, opts []mfs.Option) (*mfs.MappedFSTree, error) {
			return mfs.NewMappedFSTree(source, opts...)
		})
}

func newOpusCmd() *cobra.Command {
	return newMountCmd("opus", "Present a FLAC library as Opus, transcoding on open",
		func(cfg *config.AppConfig, log *zap.Logger, source string, opts []mfs.Option) (*mfs.MappedFSTree, error) {
			fsys := afero.NewOsFs()
			tc, err := opus.New(cfg.Opus, fsys, log)
			if err != nil {
				return nil, err
			}
			return mfs.NewMappedFSTree(source, append(opts,
				mfs.WithFs(fsys),
				mfs.WithNameMap(tc.NameMap),
				mfs.WithFileMap(tc.FileMap()))...)
		})
}

func newPlaylistCmd() *cobra.Command {
	return newMountCmd("playlist", "Rewrite device playlists to point into the real audio library",
		func(cfg *config.AppConfig, log *zap.Logger, source string, opts []mfs.Option) (*mfs.MappedFSTree, error) {
			if err := config.ValidatePlaylist(cfg.Playlist); err != nil {
				return nil, err
			}
			fsys := afero.NewOsFs()
			// Playlist entries name files as the opus view shows them.
			tc, err := opus.New(cfg.Opus, fsys, log)
			if err != nil {
				return nil, err
			}
			audio, err := mfs.NewMappedFSTree(cfg.Playlist.AudioRoot,
				mfs.WithFs(fsys),
				mfs.WithNameMap(tc.NameMap),
				mfs.WithFileMap(mfs.FileMap{ExtensionMap: opus.ExtensionMap}),
				mfs.WithLogger(log))
			if err != nil {
				return nil, fmt.Errorf("audio root: %w", err)
			}
			rw, err := playlist.New(cfg.Playlist, audio, fsys, log)
			if err != nil {
				return nil, err
			}
			return mfs.NewMappedFSTree(source, append(opts,
				mfs.WithFs(fsys),
				mfs.WithFileMap(rw.FileMap()))...)
		})
}
