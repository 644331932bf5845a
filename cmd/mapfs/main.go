// Command mapfs mounts a read-only view of a directory tree in which names
// and contents are transformed on the fly.
package main

import (
	"fmt"
	"os"

	"github.com/pallavagarwal07/mapfs/internal/config"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mapfs",
		Short: "Mount a read-only, transformed view of a directory",
		Long: `mapfs mirrors a source directory at a mountpoint. File and directory names
are mapped, and file contents are produced on open, for example by an encoder.
The source is never modified and changes to it show up immediately.

Every flag can also be set with a MAPFS_ environment variable (mount.block-size
becomes MAPFS_MOUNT_BLOCK_SIZE) or in the file given with --config.`,
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newMirrorCmd(),
		newOpusCmd(),
		newPlaylistCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mapfs version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
