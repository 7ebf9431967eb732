package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Veraticus/ledger-sieve/internal/certs"
	"github.com/Veraticus/ledger-sieve/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload and download web interface",
		Long: `Serve the web interface.

In development the server listens on plain HTTP at server.port. With
server.environment set to production it obtains certificates from
Let's Encrypt for server.domains and serves HTTPS on :443, answering
ACME challenges on :80.`,
		RunE: runServe,
	}

	cmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().String("env", "", "development or production (overrides server.environment)")
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.environment", cmd.Flags().Lookup("env"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(a.pipeline, server.Options{
		Runs:           a.runs,
		Logger:         slog.Default(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	listen := server.ListenConfig{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		CertCacheDir: cfg.Server.CertCacheDir,
		Domains:      cfg.Server.Domains,
		Production:   cfg.Production(),
	}
	if !listen.Production && cfg.Server.SelfSignedTLS {
		listen.TLS, err = certs.NewOSFileManager(filepath.Join(cfg.Server.CertCacheDir, "localhost")).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare self-signed certificate: %w", err)
		}
	}

	return server.ListenAndServe(ctx, srv.Handler(), listen, slog.Default())
}
