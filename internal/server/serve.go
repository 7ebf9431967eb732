package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// context is canceled.
const shutdownTimeout = 10 * time.Second

// ListenConfig describes how the server listens.
type ListenConfig struct {
	// Addr is the plain HTTP listen address used outside production.
	Addr         string
	CertCacheDir string
	Domains      []string
	Production   bool
	// TLS, when set outside production, serves Addr over HTTPS with a
	// fixed certificate.
	TLS          *tls.Config
	IdleTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c ListenConfig) withDefaults() ListenConfig {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = time.Minute
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	return c
}

// ListenAndServe serves h until ctx is canceled, then shuts down gracefully.
// In production it answers ACME challenges on :80 and serves TLS on :443
// with certificates from Let's Encrypt.
func ListenAndServe(ctx context.Context, h http.Handler, cfg ListenConfig, logger *slog.Logger) error {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Production {
		return serveProduction(ctx, h, cfg, logger)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	srv := newHTTPServer(h, cfg)
	if cfg.TLS != nil {
		ln = tls.NewListener(ln, cfg.TLS)
		logger.Info("Serving HTTPS with a self-signed certificate", "addr", ln.Addr().String())
	} else {
		logger.Info("Serving HTTP", "addr", ln.Addr().String())
	}

	return serveAll(ctx, logger, servedListener{srv: srv, serve: func() error { return srv.Serve(ln) }})
}

func serveProduction(ctx context.Context, h http.Handler, cfg ListenConfig, logger *slog.Logger) error {
	if len(cfg.Domains) == 0 {
		return errors.New("production serving requires at least one domain")
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Port 80 answers http-01 challenges and redirects everything else to HTTPS.
	challenge := newHTTPServer(manager.HTTPHandler(nil), cfg)
	challenge.Addr = ":80"

	secure := newHTTPServer(h, cfg)
	secure.Addr = ":443"
	secure.TLSConfig = &tls.Config{
		GetCertificate:   manager.GetCertificate,
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP256},
		NextProtos:       []string{"h2", "http/1.1"},
	}

	logger.Info("Serving HTTPS", "domains", cfg.Domains, "cert_cache", cfg.CertCacheDir)

	return serveAll(ctx, logger,
		servedListener{srv: challenge, serve: challenge.ListenAndServe},
		servedListener{srv: secure, serve: func() error { return secure.ListenAndServeTLS("", "") }},
	)
}

type servedListener struct {
	srv   *http.Server
	serve func() error
}

// serveAll runs every server and shuts all of them down when ctx is
// canceled or any one of them fails.
func serveAll(ctx context.Context, logger *slog.Logger, servers ...servedListener) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range servers {
		g.Go(func() error {
			if err := s.serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", s.srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			if err := s.srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newHTTPServer(h http.Handler, cfg ListenConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		IdleTimeout:       cfg.IdleTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
