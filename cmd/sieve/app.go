package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/ledger-sieve/internal/blobstore"
	"github.com/Veraticus/ledger-sieve/internal/classifier"
	"github.com/Veraticus/ledger-sieve/internal/config"
	"github.com/Veraticus/ledger-sieve/internal/pipeline"
	"github.com/Veraticus/ledger-sieve/internal/sheets"
	"github.com/Veraticus/ledger-sieve/internal/spreadsheet"
	"github.com/Veraticus/ledger-sieve/internal/storage"
	"github.com/spf13/viper"
)

// app holds everything a classification command needs.
type app struct {
	pipeline *pipeline.Pipeline
	runs     *storage.SQLiteStorage
}

func (a *app) Close() {
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			slog.Warn("Failed to close run history", "error", err)
		}
	}
}

// openRunStore opens and migrates the run history database.
func openRunStore(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// newApp loads the classifier artifacts once and wires the pipeline to its
// stores. extra options are applied after the configured ones.
func newApp(ctx context.Context, cfg *config.Config, extra ...pipeline.Option) (*app, error) {
	artifacts, err := classifier.LoadArtifacts(cfg.Model.VectorizerPath, cfg.Model.ClassifierPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded classifier artifacts",
		"vectorizer", cfg.Model.VectorizerPath,
		"classifier", cfg.Model.ClassifierPath,
		"features", artifacts.Vectorizer.Width())

	uploads, err := blobstore.NewOSFileStore(cfg.Storage.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open uploads directory: %w", err)
	}
	outputs, err := blobstore.NewOSFileStore(cfg.Storage.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open output directory: %w", err)
	}

	slog.Debug("Opened blob stores", "uploads", uploads.Root(), "outputs", outputs.Root())

	runs, err := openRunStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithRunStore(runs),
		pipeline.WithLogger(slog.Default()),
		pipeline.WithConfig(pipeline.Config{MissingText: cfg.Pipeline.MissingText}),
	}

	if cfg.Sheets.Enabled {
		sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
		if err != nil {
			_ = runs.Close()
			return nil, fmt.Errorf("failed to load sheets config: %w", err)
		}
		writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
		if err != nil {
			_ = runs.Close()
			return nil, fmt.Errorf("failed to create sheets writer: %w", err)
		}
		opts = append(opts, pipeline.WithReportWriter(writer))
		slog.Info("Publishing reports to Google Sheets", "spreadsheet", sheetsCfg.SpreadsheetName)
	}

	opts = append(opts, extra...)

	p, err := pipeline.New(artifacts, spreadsheet.NewRegistry(), uploads, outputs, opts...)
	if err != nil {
		_ = runs.Close()
		return nil, err
	}

	return &app{pipeline: p, runs: runs}, nil
}
