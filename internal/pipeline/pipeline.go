// Package pipeline implements the upload, classify, filter and sum workflow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/blobstore"
	"github.com/Veraticus/ledger-sieve/internal/classifier"
	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/service"
	"github.com/Veraticus/ledger-sieve/internal/spreadsheet"
	"github.com/google/uuid"
)

// FilteredOutputKey is the single output slot. Every run replaces it.
const FilteredOutputKey = "filtered_data.xlsx"

// Step names reported to an Observer, in execution order.
const (
	StepLoad      = "load"
	StepValidate  = "validate"
	StepPersist   = "persist upload"
	StepFeatures  = "derive features"
	StepVectorize = "vectorize"
	StepPredict   = "predict"
	StepCredit    = "coerce credit"
	StepFilter    = "filter"
	StepOutputs   = "write outputs"
)

// Steps lists every step a successful run reports.
var Steps = []string{
	StepLoad, StepValidate, StepPersist, StepFeatures, StepVectorize,
	StepPredict, StepCredit, StepFilter, StepOutputs,
}

// Observer is told about each step as it completes.
type Observer interface {
	StepCompleted(step string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(step string)

// StepCompleted calls f(step).
func (f ObserverFunc) StepCompleted(step string) { f(step) }

// Request is one upload to classify.
type Request struct {
	FileName  string
	FileBytes []byte
	Columns   model.ColumnSelection
}

// Config holds configuration options for the pipeline.
type Config struct {
	// MissingText is how empty cells render in the feature text.
	MissingText string
	OutputKey   string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MissingText: "nan",
		OutputKey:   FilteredOutputKey,
	}
}

// Pipeline runs uploads through the classifier. It holds no per-request
// state and is safe for concurrent use; concurrent runs race only on the
// shared output slot, where the last writer wins.
type Pipeline struct {
	artifacts *classifier.Artifacts
	codecs    *spreadsheet.Registry
	uploads   service.BlobStore
	outputs   service.BlobStore
	runs      service.RunStore
	reporter  service.ReportWriter
	observer  Observer
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunStore records every successful run.
func WithRunStore(runs service.RunStore) Option {
	return func(p *Pipeline) { p.runs = runs }
}

// WithReportWriter publishes the filtered rows after every successful run.
func WithReportWriter(w service.ReportWriter) Option {
	return func(p *Pipeline) { p.reporter = w }
}

// WithObserver reports step progress.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithConfig replaces the default configuration.
func WithConfig(c Config) Option {
	return func(p *Pipeline) {
		if c.OutputKey == "" {
			c.OutputKey = FilteredOutputKey
		}
		p.config = c
	}
}

// New creates a pipeline around loaded artifacts and two blob stores: one
// for uploads, one holding the filtered output slot.
func New(artifacts *classifier.Artifacts, codecs *spreadsheet.Registry, uploads, outputs service.BlobStore, opts ...Option) (*Pipeline, error) {
	if artifacts == nil || artifacts.Vectorizer == nil || artifacts.Classifier == nil {
		return nil, fmt.Errorf("%w: classifier artifacts are required", common.ErrArtifact)
	}
	if uploads == nil || outputs == nil {
		return nil, fmt.Errorf("%w: upload and output stores are required", common.ErrInvalidConfig)
	}
	if codecs == nil {
		codecs = spreadsheet.NewRegistry()
	}

	p := &Pipeline{
		artifacts: artifacts,
		codecs:    codecs,
		uploads:   uploads,
		outputs:   outputs,
		logger:    slog.Default(),
		config:    DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one classification run. Validation problems come back as a
// *common.ValidationError and leave every store untouched.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.PipelineResult, error) {
	started := p.now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "file", req.FileName)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := blobstore.SanitizeKey(req.FileName)
	if err != nil {
		return nil, common.NewValidationError("No file uploaded.", fmt.Errorf("%w: %v", common.ErrNoFile, err))
	}

	table, err := p.codecs.Decode(key, req.FileBytes)
	if err != nil {
		return nil, err
	}
	p.step(StepLoad)

	if err := Validate(table, req.Columns); err != nil {
		return nil, err
	}
	p.step(StepValidate)

	if err := p.uploads.Put(ctx, key, req.FileBytes); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	p.step(StepPersist)

	features := FeatureText(table, req.Columns, p.config.MissingText)
	if err := table.SetColumn(model.ColumnFileData, textValues(features)); err != nil {
		return nil, fmt.Errorf("failed to attach feature text: %w", err)
	}
	p.step(StepFeatures)

	vectors, err := p.artifacts.Vectorizer.Transform(features)
	if err != nil {
		return nil, fmt.Errorf("%w: vectorize: %v", common.ErrClassificationFailed, err)
	}
	p.step(StepVectorize)

	labels, err := p.artifacts.Classifier.Predict(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %v", common.ErrClassificationFailed, err)
	}
	if len(labels) != table.Len() {
		return nil, fmt.Errorf("%w: classifier returned %d labels for %d rows", common.ErrClassificationFailed, len(labels), table.Len())
	}
	if err := table.SetColumn(model.ColumnPredictions, labelValues(labels)); err != nil {
		return nil, fmt.Errorf("failed to attach predictions: %w", err)
	}
	p.step(StepPredict)

	if err := table.SetColumn(model.ColumnCredit, CoerceCredit(table, req.Columns.Credit)); err != nil {
		return nil, fmt.Errorf("failed to attach credit: %w", err)
	}
	p.step(StepCredit)

	selected := Matching(labels, model.PositiveLabel)
	filtered := table.Select(selected)
	total := SumCredit(filtered)
	p.step(StepFilter)

	if err := p.writeOutputs(ctx, key, table, filtered); err != nil {
		return nil, err
	}
	p.step(StepOutputs)

	result := &model.PipelineResult{
		Enriched: table,
		Filtered: filtered,
		RunID:    runID,
		Total:    total,
		Matched:  filtered.Len(),
	}

	logger.Info("Classification run complete",
		"rows", table.Len(),
		"matched", result.Matched,
		"total_credit", total,
		"duration", p.now().Sub(started))

	p.record(ctx, logger, &model.Run{
		ID:        runID,
		FileName:  key,
		Columns:   req.Columns,
		StartedAt: started,
		Duration:  p.now().Sub(started),
		Rows:      table.Len(),
		Matched:   result.Matched,
		Total:     total,
	})
	p.publish(ctx, logger, key, result)

	return result, nil
}

// FetchFilteredOutput returns the most recently written filtered workbook,
// or common.ErrNotFound when no run has completed yet.
func (p *Pipeline) FetchFilteredOutput(ctx context.Context) ([]byte, error) {
	data, err := p.outputs.Get(ctx, p.config.OutputKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read filtered output: %w", err)
	}
	return data, nil
}

// OutputName is the file name the filtered workbook is served under.
func (p *Pipeline) OutputName() string {
	return p.config.OutputKey
}

func (p *Pipeline) writeOutputs(ctx context.Context, key string, enriched, filtered *model.Table) error {
	filteredBytes, err := p.codecs.Encode(p.config.OutputKey, filtered)
	if err != nil {
		return fmt.Errorf("failed to encode filtered rows: %w", err)
	}
	if err := p.outputs.Put(ctx, p.config.OutputKey, filteredBytes); err != nil {
		return fmt.Errorf("failed to store filtered rows: %w", err)
	}

	enrichedBytes, err := p.codecs.Encode(key, enriched)
	if err != nil {
		return fmt.Errorf("failed to encode enriched table: %w", err)
	}
	if err := p.uploads.Put(ctx, key, enrichedBytes); err != nil {
		return fmt.Errorf("failed to store enriched table: %w", err)
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, run *model.Run) {
	if p.runs == nil {
		return
	}
	if err := p.runs.SaveRun(ctx, run); err != nil {
		logger.Warn("Failed to record run", "error", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, fileName string, result *model.PipelineResult) {
	if p.reporter == nil {
		return
	}
	summary := &service.ReportSummary{
		GeneratedAt: p.now(),
		FileName:    fileName,
		RunID:       result.RunID,
		TotalCredit: result.Total,
		Rows:        result.Enriched.Len(),
		Matched:     result.Matched,
	}
	if err := p.reporter.Write(ctx, result.Filtered, summary); err != nil {
		logger.Warn("Failed to publish report", "error", err)
	}
}

func (p *Pipeline) step(name string) {
	if p.observer != nil {
		p.observer.StepCompleted(name)
	}
}
