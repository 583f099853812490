package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"startup-cms/internal/auth"
	"startup-cms/internal/cms"
	"startup-cms/internal/config"
	"startup-cms/internal/metrics"
	"startup-cms/internal/security"
	"startup-cms/internal/storage"
	"startup-cms/internal/upload"
	"startup-cms/web/handler"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		addr       string
		selfSigned bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Examples:
  startup-cms serve
  startup-cms serve --addr=127.0.0.1:3000
  startup-cms serve --tls-self-signed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, selfSigned)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default \":$PORT\")")
	cmd.Flags().BoolVar(&selfSigned, "tls-self-signed", false, "Serve HTTPS with a generated self-signed certificate")

	return cmd
}

func runServe(ctx context.Context, addr string, selfSigned bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	objects, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.WithRegistry(registry))

	if cfg.StudioSecret == "" {
		logger.Warn("STUDIO_SECRET not set; studio capabilities will not survive a restart")
	}
	caps, err := security.NewCapabilities(cfg.StudioSecret, security.DefaultCapabilityTTL)
	if err != nil {
		return err
	}
	if cfg.StudioTrustReferer {
		logger.Warn("STUDIO_TRUST_REFERER enabled; uploads with a /studio Referer skip authorization")
	}

	h, err := handler.New(handler.Options{
		Relay:           upload.NewRelay(objects, cfg.Bunny.PullZone, upload.WithRecorder(m)),
		Content:         cms.NewMemoryStore(),
		Sessions:        auth.New(auth.NewMemoryStore(cfg.SessionTTL)),
		Capabilities:    caps,
		Logger:          logger,
		Middleware:      []mux.MiddlewareFunc{m.Middleware},
		Metrics:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		EditorPassword:  cfg.EditorPassword,
		StudioAccessKey: cfg.StudioAccessKey,
		TrustReferer:    cfg.StudioTrustReferer,
	})
	if err != nil {
		return err
	}

	if addr == "" {
		addr = ":" + cfg.Port
	}
	srv := newHTTPServer(addr, h, logger)
	if selfSigned {
		hosts := []string{"localhost", "127.0.0.1"}
		if ip := GetLocalIP(); ip != "" {
			hosts = append(hosts, ip)
		}
		srv.TLSConfig, err = security.GenerateTLSConfig(hosts...)
		if err != nil {
			return fmt.Errorf("self-signed certificate: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			"addr", addr,
			"lan_ip", GetLocalIP(),
			"tls", selfSigned,
			"backend", objects.Backend(),
			"version", version,
		)
		if selfSigned {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHTTPServer builds the server with deadlines sized for pages. The upload
// route extends its own deadlines to handler.DefaultUploadTimeout.
func newHTTPServer(addr string, h http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, cfg.S3.Bucket), nil

	case config.BackendMinio:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		store := storage.NewMinioStore(client, cfg.Minio.Bucket)
		if err := store.EnsureBucket(ctx, logger); err != nil {
			logger.Warn("minio bucket not ready", "bucket", cfg.Minio.Bucket, "err", err)
		}
		return store, nil

	default:
		return storage.NewBunnyStore(cfg.Bunny.StorageZone, cfg.Bunny.Region, cfg.Bunny.APIKey), nil
	}
}

// GetLocalIP returns the non-loopback local IPv4 address of the host
func GetLocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
