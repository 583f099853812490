package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"startup-cms/internal/ui"
	"startup-cms/internal/uploader"
)

type uploadOptions struct {
	server     string
	session    string
	capability string
	insecure   bool
	verbose    bool
}

func uploadCmd() *cobra.Command {
	var opts uploadOptions

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image and print its public URL",
		Long: `Upload an image through the server's upload endpoint.

The file is checked locally first (must be an image, at most 50MB).
The progress bar is simulated while the request is in flight.

Examples:
  startupctl upload logo.png --server http://localhost:8080 --session $SESSION
  startupctl upload logo.png --server https://localhost:8080 --capability $TOKEN --insecure`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.server, "server", "s", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&opts.session, "session", os.Getenv("STARTUP_CMS_SESSION"), "Editor session ID")
	cmd.Flags().StringVar(&opts.capability, "capability", os.Getenv("STARTUP_CMS_CAPABILITY"), "Studio capability token")
	cmd.Flags().BoolVarP(&opts.insecure, "insecure", "k", false, "Accept self-signed server certificates")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log request details")

	return cmd
}

func runUpload(ctx context.Context, path string, opts uploadOptions, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	file, closer, err := uploader.OpenFile(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	endpoint := uploadEndpoint(opts.server)
	logger.Debug("uploading", "file", file.Name, "size", file.Size, "type", file.ContentType, "endpoint", endpoint)

	clientOpts := []uploader.ClientOption{
		uploader.WithSession(opts.session),
		uploader.WithCapability(opts.capability),
	}
	if opts.insecure {
		clientOpts = append(clientOpts, uploader.WithHTTPClient(&http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		}))
	}

	bar := ui.NewBar("⬆️  Uploading...", stderr)
	started := false
	widget := uploader.New(
		uploader.NewClient(endpoint, clientOpts...),
		func(url string) { logger.Debug("value changed", "url", url) },
		uploader.WithStateListener(func(s uploader.State) {
			if s.Phase == uploader.PhaseUploading {
				started = true
				bar.Set(s.Progress)
			}
		}),
	)
	defer widget.Close()

	url, err := widget.Upload(ctx, file)
	if err != nil {
		if started {
			bar.Finish(0)
		}
		logger.Debug("upload failed", "err", err)
		return err
	}
	bar.Finish(100)

	fmt.Fprintln(stdout, url)
	return nil
}

// uploadEndpoint accepts either a server base URL or the full endpoint URL.
func uploadEndpoint(server string) string {
	server = strings.TrimRight(server, "/")
	if strings.HasSuffix(server, "/api/upload") {
		return server
	}
	return server + "/api/upload"
}
