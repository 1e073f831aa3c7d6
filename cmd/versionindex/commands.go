package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/zerverless/versionindex/internal/api"
	"github.com/zerverless/versionindex/internal/config"
	"github.com/zerverless/versionindex/internal/logging"
	"github.com/zerverless/versionindex/internal/registry"
	"github.com/zerverless/versionindex/internal/revision"
)

type globalFlags struct {
	configPath   string
	appID        string
	versionCount int
	driver       string
	host         string
	redisPort    int
	password     string
	dataDir      string
	repo         string
	logLevel     string
	httpPort     int
}

func bindGlobalFlags(fs *pflag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&g.appID, "app-id", "", "Application namespace")
	fs.IntVar(&g.versionCount, "version-count", 0, "Number of versions to retain")
	fs.StringVar(&g.driver, "driver", "", "Store driver: redis, badger or memory")
	fs.StringVar(&g.host, "host", "", "Redis host")
	fs.IntVar(&g.redisPort, "redis-port", 0, "Redis port")
	fs.StringVar(&g.password, "password", "", "Redis password")
	fs.StringVar(&g.dataDir, "data-dir", "", "Badger data directory")
	fs.StringVar(&g.repo, "repo", "", "Repository the revision key is read from")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level: error, warn, info, debug or trace")
	fs.IntVarP(&g.httpPort, "port", "p", 0, "HTTP port for serve")
	return g
}

// load resolves the configuration: flags > env > file > defaults.
func load(g *globalFlags, fs *pflag.FlagSet) (*config.Config, logr.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, logr.Discard(), err
	}

	if fs.Changed("app-id") {
		cfg.AppID = g.appID
	}
	if fs.Changed("version-count") {
		cfg.VersionCount = g.versionCount
	}
	if fs.Changed("driver") {
		cfg.Connection.Driver = g.driver
	}
	if fs.Changed("host") {
		cfg.Connection.Host = g.host
	}
	if fs.Changed("redis-port") {
		cfg.Connection.Port = g.redisPort
	}
	if fs.Changed("password") {
		cfg.Connection.Password = g.password
	}
	if fs.Changed("data-dir") {
		cfg.Connection.Path = g.dataDir
	}
	if fs.Changed("repo") {
		cfg.RepoPath = g.repo
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if fs.Changed("port") {
		cfg.HTTPPort = g.httpPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, logr.Discard(), err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, logr.Discard(), err
	}
	return cfg, logger, nil
}

// openRegistry returns the configured registry and a func that closes it
// and flushes the logger.
func openRegistry(g *globalFlags, fs *pflag.FlagSet, src revision.Source) (*registry.Registry, func(), error) {
	cfg, logger, err := load(g, fs)
	if err != nil {
		return nil, nil, err
	}
	if src == nil {
		src = revision.Git{Path: cfg.RepoPath}
	}

	conn := cfg.Connection
	reg, err := registry.New(registry.Options{
		Connection:   &conn,
		AppID:        cfg.AppID,
		VersionCount: cfg.VersionCount,
		Revision:     src,
		Logger:       logger,
	})
	if err != nil {
		logging.Sync(logger)
		return nil, nil, err
	}

	return reg, func() {
		reg.Close()
		logging.Sync(logger)
	}, nil
}

func runUpload(ctx context.Context, g *globalFlags, fs *pflag.FlagSet, rev string, stdin io.Reader, stdout io.Writer) error {
	if fs.NArg() != 1 {
		return errors.New("upload takes exactly one FILE argument (use - for stdin)")
	}

	var src revision.Source
	if rev != "" {
		if !revision.Valid(rev) {
			return fmt.Errorf("invalid revision: %s", rev)
		}
		src = revision.Static(rev)
	}

	payload, err := readPayload(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	reg, closeRegistry, err := openRegistry(g, fs, src)
	if err != nil {
		return err
	}
	defer closeRegistry()

	key, err := reg.Upload(ctx, payload)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, key)
	return nil
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

func runActivate(ctx context.Context, g *globalFlags, fs *pflag.FlagSet, stdout io.Writer) error {
	if fs.NArg() != 1 {
		return errors.New("activate takes exactly one KEY argument")
	}
	key := fs.Arg(0)

	reg, closeRegistry, err := openRegistry(g, fs, nil)
	if err != nil {
		return err
	}
	defer closeRegistry()

	if err := reg.SetCurrent(ctx, key); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Activated %s for %s\n", key, reg.AppID())
	return nil
}

func runList(ctx context.Context, g *globalFlags, fs *pflag.FlagSet, count int, stdout io.Writer) error {
	reg, closeRegistry, err := openRegistry(g, fs, nil)
	if err != nil {
		return err
	}
	defer closeRegistry()

	versions, err := reg.ListVersions(ctx, count)
	if err != nil {
		return err
	}

	current, err := reg.Current(ctx)
	if err != nil && !errors.Is(err, registry.ErrNoCurrent) {
		return err
	}

	for _, v := range versions {
		marker := " "
		if v.SHA1 == current {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %s\n", marker, v.SHA1)
	}
	return nil
}

func runCurrent(ctx context.Context, g *globalFlags, fs *pflag.FlagSet, stdout io.Writer) error {
	reg, closeRegistry, err := openRegistry(g, fs, nil)
	if err != nil {
		return err
	}
	defer closeRegistry()

	key, err := reg.Current(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, key)
	return nil
}

func runServe(ctx context.Context, g *globalFlags, fs *pflag.FlagSet) error {
	cfg, logger, err := load(g, fs)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	conn := cfg.Connection
	manager, err := registry.NewManager(registry.Options{
		Connection:   &conn,
		VersionCount: cfg.VersionCount,
		Revision:     revision.Override{Fallback: revision.Git{Path: cfg.RepoPath}},
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	logger.Info("Starting versionindex", "node", cfg.NodeID, "driver", conn.Driver, "versionCount", cfg.VersionCount)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(cfg, manager),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}
