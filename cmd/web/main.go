package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "startup-cms",
		Short: "Startup directory with a studio and a CDN image upload relay",
		Long: `startup-cms serves the public startup pages, the editor studio and
the image upload endpoint that forwards files to object storage.

Configuration is read from the environment (PORT, STORAGE_BACKEND,
BUNNY_*, S3_*, MINIO_*, EDITOR_PASSWORD, STUDIO_*, LOG_*).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "startup-cms %s (%s)\n", version, commit)
		},
	}
}
