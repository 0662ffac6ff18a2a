// Package main is the entry point for the mail relay HTTP server.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/mailrelay/internal/config"
	"github.com/shineum/mailrelay/internal/provider"
	"github.com/shineum/mailrelay/internal/provider/smtp"
	"github.com/shineum/mailrelay/internal/provider/stdout"
	"github.com/shineum/mailrelay/internal/relay"
	"github.com/shineum/mailrelay/internal/server"
	relaytls "github.com/shineum/mailrelay/internal/tls"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	envFile := flag.String("env-file", ".env", "path to a .env file (ignored when missing)")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	// Optional HTTPS
	var tlsConfig *tls.Config
	tlsMode := "disabled"
	if cfg.HTTP.TLS.Enabled {
		tlsConfig, err = relaytls.LoadOrGenerateTLS(cfg.HTTP.TLS.CertFile, cfg.HTTP.TLS.KeyFile)
		if err != nil {
			slog.Error("failed to setup TLS", "error", err)
			os.Exit(1)
		}
		tlsMode = "self-signed"
		if cfg.HTTP.TLS.CertFile != "" && cfg.HTTP.TLS.KeyFile != "" {
			tlsMode = "file"
		}
	}

	// Select email delivery provider
	prov := selectProvider(cfg)

	srv := server.New(server.Config{
		Addr:        cfg.Addr(),
		BodyLimit:   cfg.HTTP.BodyLimit,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		StaticDir:   cfg.HTTP.StaticDir,
		TLSConfig:   tlsConfig,
		Logger:      slog.Default(),
	}, relay.New(prov, slog.Default()))

	slog.Info("starting mailrelay",
		"listen", cfg.Addr(),
		"provider", prov.Name(),
		"tls_mode", tlsMode,
		"static_dir", cfg.HTTP.StaticDir,
	)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Start the server (blocks until context is cancelled)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("mailrelay stopped")
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider chooses the email delivery backend. Validate has already
// rejected unknown names.
func selectProvider(cfg *config.Config) provider.Provider {
	switch cfg.Delivery.Provider {
	case config.ProviderStdout:
		slog.Info("using stdout provider, mail will be printed instead of delivered")
		return stdout.New()
	default:
		if cfg.Delivery.InsecureSkipVerify {
			slog.Warn("SMTP certificate verification is disabled")
		}
		slog.Info("using SMTP provider", "helo_name", cfg.Delivery.HeloName)
		return smtp.New(smtp.Config{
			HeloName:           cfg.Delivery.HeloName,
			InsecureSkipVerify: cfg.Delivery.InsecureSkipVerify,
			Logger:             slog.Default(),
		})
	}
}
