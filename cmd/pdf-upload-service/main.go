package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ksree/pdf-upload-service/internal/config"
	"github.com/ksree/pdf-upload-service/internal/gateway"
	"github.com/ksree/pdf-upload-service/internal/logging"
	"github.com/ksree/pdf-upload-service/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "pdf-upload-service",
		Short: "PDF Upload Service",
		Long:  `An HTTP gateway that validates PDF uploads, stores them in S3 and returns presigned download URLs`,
		RunE:  run,
	}

	rootCmd.Flags().StringP("config", "c", "", "config file path")
	rootCmd.Flags().String("listen", "", "listen address (overrides config)")
	rootCmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	levelName, _ := cmd.Flags().GetString("log-level")
	if levelName == "" {
		levelName = cfg.Server.LogLevel
		if cfg.Server.Debug {
			levelName = "debug"
		}
	}
	if cfg.Server.Debug {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
		"num_cpu": runtime.NumCPU(),
	}).Info("Starting PDF upload server")

	if cfg.Sentry.Enabled() {
		if err := initSentry(cfg); err != nil {
			logrus.WithError(err).Error("Failed to initialize Sentry")
			// Don't fail startup if Sentry init fails
		} else {
			defer sentry.Flush(2 * time.Second)
			logrus.Info("Sentry initialized successfully")

			logrus.AddHook(logging.NewSentryHook(nil))
			logrus.AddHook(logging.NewBreadcrumbHook(nil))
		}
	}

	if listenAddr, _ := cmd.Flags().GetString("listen"); listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}

	if missing := cfg.AWS.MissingVars(); len(missing) > 0 {
		logrus.Warnf("Missing environment variables: %s", strings.Join(missing, ", "))
		logrus.Warn("Set these variables to enable S3 functionality")
	}

	logrus.WithFields(logrus.Fields{
		"listen_addr":     cfg.Server.Listen,
		"bucket":          cfg.AWS.Bucket,
		"region":          cfg.AWS.NormalizedRegion(),
		"access_key":      cfg.AWS.SafeAccessKey(),
		"max_upload_size": cfg.Upload.MaxSize,
	}).Info("Configuration loaded")

	// The server starts even without a working store: uploads answer
	// with a client-initialization error until configuration is fixed,
	// while health and config endpoints stay available.
	var store storage.ObjectStore
	if s3Store, err := storage.NewS3Store(cfg.AWS); err != nil {
		logrus.WithError(err).Error("Failed to initialize S3 client")
	} else {
		store = s3Store
	}

	server := gateway.NewServer(cfg, store)

	logrus.WithFields(logrus.Fields{
		"readTimeout":  cfg.Server.ReadTimeout,
		"writeTimeout": cfg.Server.WriteTimeout,
		"idleTimeout":  cfg.Server.IdleTimeout,
		"listen":       cfg.Server.Listen,
	}).Info("Starting HTTP server with configured timeouts")

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,

		ConnState: func(conn net.Conn, state http.ConnState) {
			if state == http.StateNew {
				if tcpConn, ok := conn.(*net.TCPConn); ok {
					_ = tcpConn.SetNoDelay(true)
					_ = tcpConn.SetKeepAlive(true)
					_ = tcpConn.SetKeepAlivePeriod(30 * time.Second)
				}
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		logrus.Info("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to shutdown server gracefully")
		}
		cancel()
	}()

	logrus.WithField("addr", cfg.Server.Listen).Info("Server listening")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()
	logrus.Info("Server stopped")
	return nil
}

func initSentry(cfg *config.Config) error {
	options := sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		AttachStacktrace: cfg.Sentry.AttachStacktrace,
		EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
		Debug:            cfg.Sentry.Debug,
		ServerName:       cfg.Sentry.ServerName,
	}

	if options.Release == "" {
		options.Release = fmt.Sprintf("pdf-upload-service@%s", version)
	}

	options.Tags = map[string]string{
		"server.version": version,
		"server.commit":  commit,
		"server.date":    date,
	}

	return sentry.Init(options)
}
