package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/pipeline"
	"github.com/Veraticus/ledger-sieve/internal/spreadsheet"
)

const (
	noFileMessage      = "No file uploaded."
	badIndexMessage    = "Column positions must be whole numbers."
	tooLargeMessage    = "Uploaded file is too large."
	genericFailMessage = "Something went wrong while processing the file."
)

type indexPage struct {
	Flash string
}

type resultPage struct {
	Filtered *model.Table
	RunID    string
	Total    float64
	Matched  int
}

type errorPage struct {
	Message string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", indexPage{Flash: popFlash(w, r)})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		redirectWithFlash(w, r, tooLargeMessage)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			redirectWithFlash(w, r, tooLargeMessage)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			s.logger.Warn("Failed to parse upload form", "error", err)
		}
		redirectWithFlash(w, r, noFileMessage)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		redirectWithFlash(w, r, noFileMessage)
		return
	}
	defer func() { _ = file.Close() }()

	cols, err := parseColumns(r)
	if err != nil {
		redirectWithFlash(w, r, badIndexMessage)
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		s.logger.Error("Failed to read upload", "file", header.Filename, "error", err)
		s.renderError(w, http.StatusInternalServerError, genericFailMessage)
		return
	}

	s.logger.Debug("Received upload",
		"file", header.Filename,
		"size", header.Size,
		"content_type", header.Header.Get("Content-Type"))

	result, err := s.classifier.Run(r.Context(), pipeline.Request{
		FileName:  header.Filename,
		FileBytes: buf.Bytes(),
		Columns:   cols,
	})
	if err != nil {
		if verr, ok := common.IsValidation(err); ok {
			redirectWithFlash(w, r, verr.UserMessage)
			return
		}
		common.LogError(err, "Classification run failed", common.Fields{"file": header.Filename})
		message := genericFailMessage
		var unsupported *spreadsheet.UnsupportedFormatError
		switch {
		case errors.As(err, &unsupported):
			message = fmt.Sprintf("Files of type %q are not supported. Upload one of: %s.",
				unsupported.Ext, strings.Join(unsupported.Accepted, ", "))
		case errors.Is(err, common.ErrLoad):
			message = "The uploaded file could not be read as a spreadsheet."
		}
		s.renderError(w, http.StatusInternalServerError, message)
		return
	}

	s.render(w, http.StatusOK, "result.html", resultPage{
		Filtered: result.Filtered,
		RunID:    result.RunID,
		Total:    result.Total,
		Matched:  result.Matched,
	})
}

func parseColumns(r *http.Request) (model.ColumnSelection, error) {
	var cols model.ColumnSelection
	for _, f := range []struct {
		dst  *int
		name string
	}{
		{&cols.Description, "description"},
		{&cols.RefNo, "ref_no"},
		{&cols.Credit, "credit"},
	} {
		n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(f.name)))
		if err != nil {
			return cols, fmt.Errorf("%w: %s", common.ErrInvalidColumn, f.name)
		}
		*f.dst = n
	}
	return cols, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, err := s.classifier.FetchFilteredOutput(r.Context())
	if errors.Is(err, common.ErrNotFound) {
		s.renderError(w, http.StatusNotFound, "No filtered output yet. Upload a file first.")
		return
	}
	if err != nil {
		s.logger.Error("Failed to read filtered output", "error", err)
		s.renderError(w, http.StatusInternalServerError, genericFailMessage)
		return
	}

	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.classifier.OutputName()))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("Failed to write download", "error", err)
	}
}

type runJSON struct {
	ID                string  `json:"id"`
	FileName          string  `json:"file_name"`
	StartedAt         string  `json:"started_at"`
	DurationMS        int64   `json:"duration_ms"`
	DescriptionColumn int     `json:"description_column"`
	RefNoColumn       int     `json:"ref_no_column"`
	CreditColumn      int     `json:"credit_column"`
	Rows              int     `json:"rows"`
	Matched           int     `json:"matched"`
	TotalCredit       float64 `json:"total_credit"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	out := make([]runJSON, 0)
	if s.runs != nil {
		runs, err := s.runs.ListRuns(r.Context(), limit)
		if err != nil {
			s.logger.Error("Failed to list runs", "error", err)
			writeJSONError(w, "failed to list runs", http.StatusInternalServerError)
			return
		}
		for _, run := range runs {
			out = append(out, runJSON{
				ID:                run.ID,
				FileName:          run.FileName,
				StartedAt:         run.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
				DurationMS:        run.Duration.Milliseconds(),
				DescriptionColumn: run.Columns.Description,
				RefNoColumn:       run.Columns.RefNo,
				CreditColumn:      run.Columns.Credit,
				Rows:              run.Rows,
				Matched:           run.Matched,
				TotalCredit:       run.Total,
			})
		}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to execute template", "template", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, message string) {
	s.render(w, status, "error.html", errorPage{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
