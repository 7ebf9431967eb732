// Package model defines the core domain models used throughout the application.
package model

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies what a spreadsheet cell holds.
type ValueKind int

// Cell kinds.
const (
	KindEmpty ValueKind = iota
	KindText
	KindNumber
)

// Value is a single spreadsheet cell.
type Value struct {
	Text   string
	Number float64
	Kind   ValueKind
}

// Text creates a text cell.
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Number creates a numeric cell. NaN is stored as an empty cell.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Empty()
	}
	return Value{Kind: KindNumber, Number: f}
}

// Empty creates an empty cell.
func Empty() Value {
	return Value{Kind: KindEmpty}
}

// IsEmpty reports whether the cell holds nothing.
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// String renders the cell with empty cells as the empty string.
func (v Value) String() string {
	return v.Format("")
}

// Format renders the cell as text. Every kind renders the same way no matter
// where it came from: text verbatim, numbers in their shortest form with no
// trailing ".0" for integral values, and empty cells as missing.
//
// This differs from pandas, which renders every cell of a float column with
// a decimal point: a column holding 1234 next to a blank cell prints "1234.0"
// there and "1234" here.
func (v Value) Format(missing string) string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return FormatNumber(v.Number)
	default:
		return missing
	}
}

// Float returns the numeric reading of the cell. Text is trimmed and parsed;
// anything that is not a finite-or-infinite number reports false.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Number, !math.IsNaN(v.Number)
	case KindText:
		s := strings.TrimSpace(v.Text)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FormatNumber renders a float the way cell values are shown to the vectorizer.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.Abs(f) < 1e16:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// ParseCell infers a cell from raw text: blank is empty, numeric text becomes
// a number, everything else stays text.
func ParseCell(raw string) Value {
	if strings.TrimSpace(raw) == "" {
		return Empty()
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(raw)
}
