// RemoteTree TUI in Go 1.25 using Bubble Tea

package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jvanrhyn.dev/remotetree/internal/config"
	"jvanrhyn.dev/remotetree/internal/logging"
	"jvanrhyn.dev/remotetree/internal/remote"
)

// rooted is implemented by every store: the tree path of its root.
type rooted interface {
	remote.Transport
	RootPath() string
}

// openStore builds the backend named by cfg.
func openStore(cfg *config.Config) (rooted, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		fs := memfs.New()
		if err := seedDemo(fs); err != nil {
			return nil, fmt.Errorf("seed demo store: %w", err)
		}
		return remote.NewBillyStore(fs, cfg.RootName), nil
	case config.BackendS3:
		return remote.NewMinioStore(remote.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Prefix:    cfg.S3Prefix,
			RootName:  cfg.RootName,
		})
	default:
		abs, err := filepath.Abs(cfg.DirPath)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", cfg.DirPath, err)
		}
		return remote.NewBillyStore(osfs.New(abs), cfg.RootName), nil
	}
}

// serveMetrics exposes reg on addr until the process exits.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "Store to browse: dir, memory or s3")
	flag.StringVar(&cfg.RootName, "root", cfg.RootName, "Name of the root directory in the tree")
	flag.StringVar(&cfg.DirPath, "dir", cfg.DirPath, "Directory served by the dir backend")
	flag.StringVar(&cfg.S3Bucket, "bucket", cfg.S3Bucket, "Bucket served by the s3 backend")
	flag.StringVar(&cfg.S3Prefix, "prefix", cfg.S3Prefix, "Key prefix served by the s3 backend")
	flag.Int64Var(&cfg.PrefetchBytes, "prefetch", cfg.PrefetchBytes, "Download files up to this size as soon as they are listed (0 = off)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogOutput, "log-file", cfg.LogOutput, "Log file")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	exportDir := flag.String("export-dir", ".", "Directory CSV exports are written to")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: cfg.LogOutput}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logging.Sync() }()
	log := logging.S()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	transport := remote.NewCoalescing(remote.NewInstrumented(store, remote.NewMetrics(reg)))
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr, reg, log)
	}

	log.Infow("starting", "backend", cfg.Backend, "root", store.RootPath(), "prefetch", cfg.PrefetchBytes)
	b, err := newBrowser(browserOptions{
		Transport:     transport,
		RootPath:      store.RootPath(),
		PrefetchLimit: cfg.PrefetchBytes,
		Logger:        log,
		ExportDir:     *exportDir,
	})
	if err != nil {
		return err
	}
	p := tea.NewProgram(b, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
