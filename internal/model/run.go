package model

import "time"

// Column names the pipeline adds to or requires from an uploaded table.
const (
	ColumnDescription = "Description"
	ColumnRefNo       = "Ref_No"
	ColumnFileData    = "FileData"
	ColumnPredictions = "Predictions"
	ColumnCredit      = "Credit"
)

// PositiveLabel is the prediction that selects a row into the filtered subset.
const PositiveLabel = 1

// ColumnSelection holds the caller-supplied zero-based column positions.
type ColumnSelection struct {
	Description int
	RefNo       int
	Credit      int
}

// PipelineResult is the outcome of one classification run.
type PipelineResult struct {
	Enriched *Table
	Filtered *Table
	RunID    string
	Total    float64
	Matched  int
}

// Run is the history record of a completed pipeline execution.
type Run struct {
	StartedAt time.Time
	ID        string
	FileName  string
	Columns   ColumnSelection
	Duration  time.Duration
	Total     float64
	Rows      int
	Matched   int
}
