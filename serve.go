package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rfd-conformance/rfd-test-harness/archive"
	"github.com/rfd-conformance/rfd-test-harness/config"
	"github.com/rfd-conformance/rfd-test-harness/control"
	"github.com/rfd-conformance/rfd-test-harness/feed"
	"github.com/rfd-conformance/rfd-test-harness/framework"
	"github.com/rfd-conformance/rfd-test-harness/metrics"
	"github.com/rfd-conformance/rfd-test-harness/simulator"
	"github.com/rfd-conformance/rfd-test-harness/store"
	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

const (
	defaultConfigFile = "rfd.yaml"
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Form Manager, Receiver, Processor and Archiver simulators",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetString("config_file"))
		if err != nil {
			return err
		}
		if app := viper.GetString("application"); app != "" {
			cfg.Application = app
		}
		if port := viper.GetInt("port"); port != 0 {
			cfg.Port = port
		}
		ctx, cancel := signalContext()
		defer cancel()
		return serve(ctx, cfg, viper.GetString("profile"), viper.GetBool("remote"), slog.Default())
	},
}

func init() {
	fs := serveCmd.Flags()
	fs.StringP("profile", "p", config.DefaultProfile, "simulator profile to start")
	fs.StringP("application", "a", "", "application name, the first path segment of every endpoint")
	fs.BoolP("remote", "r", false, "also start the control API")
	fs.StringP("config-file", "f", defaultConfigFile, "config file")
	fs.Int("port", 0, "port the simulators listen on (overrides the config file)")
	_ = viper.BindPFlag("profile", fs.Lookup("profile"))
	_ = viper.BindPFlag("application", fs.Lookup("application"))
	_ = viper.BindPFlag("remote", fs.Lookup("remote"))
	_ = viper.BindPFlag("config_file", fs.Lookup("config-file"))
	_ = viper.BindPFlag("port", fs.Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file. A missing default file means the built-in configuration.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigFile {
		slog.Info("No config file found, using the built-in profile", "config_file", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

// serve runs the simulators, and the control API if remote is set, until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, profileName string, remote bool, logger *slog.Logger) error {
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open transaction store: %w", err)
	}
	defer func() { _ = st.Close() }()

	archiveConfig := cfg.Archive
	archiveConfig.Dir = cfg.ResolvePath(archiveConfig.Dir)
	arch, err := archive.Open(ctx, archiveConfig)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	transactionFeed := feed.New(cfg.Feed.ReplayCount(),
		framework.LoggerWithPrefix(framework.SlogLogger(logger, slog.LevelDebug), "[feed] "))
	defer transactionFeed.Close()
	collector := metrics.NewCollector()

	executor := wslog.NewExecutor(wslog.ExecutorConfig{
		Workers:     cfg.Executor.Workers,
		QueueSize:   cfg.Executor.Queue,
		SinkTimeout: cfg.Executor.SinkTimeout,
		Logger:      logger,
	}, store.Sink(st), transactionFeed, collector)
	defer executor.Close()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	registry := simulator.NewRegistry(cfg.Application, fmt.Sprintf("http://%s:%d", cfg.Host, port),
		simulator.Dependencies{Archive: arch, Logger: logger}, executor)
	for _, e := range profile.Endpoints {
		info, err := registry.Add(e)
		if err != nil {
			_ = listener.Close()
			return err
		}
		logger.Info("Endpoint ready", "name", info.Name, "actor", info.Actor, "url", info.URL)
	}

	servers := []*http.Server{{Handler: registry, ReadHeaderTimeout: readHeaderTimeout}}
	listeners := []net.Listener{listener}

	if remote {
		runner := control.NewRunner(control.RunnerConfig{
			CallbackHost: cfg.Host,
			Capture:      []string{"workflowData/formID"},
			Submitter:    executor,
			Logger:       logger,
		})
		defer runner.Close()
		controlListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Control.Port))
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("listen on control port %d: %w", cfg.Control.Port, err)
		}
		servers = append(servers, &http.Server{
			Handler: control.NewServer(control.Config{
				Application: cfg.Application,
				Profile:     profileName,
				Registry:    registry,
				Store:       st,
				Feed:        transactionFeed,
				Metrics:     collector,
				Runner:      runner,
				FilesDir:    cfg.ResolvePath(cfg.Files.Dir),
				Logger:      logger,
			}),
			ReadHeaderTimeout: readHeaderTimeout,
		})
		listeners = append(listeners, controlListener)
		logger.Info("Control API ready", "url", fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Control.Port))
	}

	errCh := make(chan error, len(servers))
	for i, s := range servers {
		s, l := s, listeners[i]
		go func() {
			if err := s.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}
	logger.Info("Simulators started", "application", cfg.Application, "profile", profileName, "port", port)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-errCh:
		logger.Error("Server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		_ = s.Shutdown(shutdownCtx)
	}
	return err
}
