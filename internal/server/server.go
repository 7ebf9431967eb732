// Package server exposes the classification pipeline over HTTP.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/pipeline"
	"github.com/Veraticus/ledger-sieve/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/urfave/negroni"
)

//go:embed templates/*.html
var content embed.FS

// XLSXContentType is the MIME type of the filtered workbook download.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultMaxUploadBytes bounds an upload request when no limit is configured.
const DefaultMaxUploadBytes int64 = 32 << 20

// Classifier runs uploads and serves the latest filtered output.
type Classifier interface {
	Run(ctx context.Context, req pipeline.Request) (*model.PipelineResult, error)
	FetchFilteredOutput(ctx context.Context) ([]byte, error)
	OutputName() string
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	classifier     Classifier
	runs           service.RunStore
	templates      *template.Template
	logger         *slog.Logger
	maxUploadBytes int64
}

// Options configures a Server.
type Options struct {
	// Runs backs GET /runs. Nil serves an empty history.
	Runs           service.RunStore
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// New creates a server around a classifier.
func New(classifier Classifier, opts Options) (*Server, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"cell":  formatCell,
		"money": formatMoney,
	}).ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return &Server{
		classifier:     classifier,
		runs:           opts.Runs,
		templates:      tmpl,
		logger:         opts.Logger,
		maxUploadBytes: opts.MaxUploadBytes,
	}, nil
}

// Router registers every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Handler wraps the router with panic recovery and access logging.
func (s *Server) Handler() http.Handler {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(s.Router())
	return n
}

func formatCell(v model.Value) string {
	return v.String()
}

func formatMoney(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}
