// Package spreadsheet converts uploaded files to and from tables.
package spreadsheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
)

// ErrEncodeUnsupported is returned by codecs that can only read.
var ErrEncodeUnsupported = errors.New("format cannot be written")

// UnsupportedFormatError reports a file whose extension has no codec. It
// matches common.ErrLoad.
type UnsupportedFormatError struct {
	Ext      string
	Accepted []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%v: unsupported file type %q (accepted: %s)",
		common.ErrLoad, e.Ext, strings.Join(e.Accepted, ", "))
}

func (e *UnsupportedFormatError) Unwrap() error {
	return common.ErrLoad
}

// Codec reads and writes one file format.
type Codec interface {
	Decode(data []byte) (*model.Table, error)
	Encode(table *model.Table) ([]byte, error)
}

// Registry picks a codec from a file name's extension.
type Registry struct {
	codecs   map[string]Codec
	fallback Codec
}

// NewRegistry returns a registry with the built-in formats: Excel workbooks,
// CSV, and OFX/QFX bank statements. Anything that is not CSV is written back
// as an Excel workbook.
func NewRegistry() *Registry {
	xlsx := NewXLSXCodec()
	ofx := NewOFXCodec()
	return &Registry{
		codecs: map[string]Codec{
			".xlsx": xlsx,
			".xlsm": xlsx,
			".csv":  NewCSVCodec(),
			".ofx":  ofx,
			".qfx":  ofx,
		},
		fallback: xlsx,
	}
}

// Register adds or replaces the codec for an extension.
func (r *Registry) Register(ext string, codec Codec) {
	r.codecs[strings.ToLower(ext)] = codec
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ForName returns the codec registered for the file's extension. Legacy
// .xls workbooks are not registered.
func (r *Registry) ForName(name string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(name))
	codec, ok := r.codecs[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext, Accepted: r.Extensions()}
	}
	return codec, nil
}

// Decode parses data using the codec for name. Every failure wraps
// common.ErrLoad.
func (r *Registry) Decode(name string, data []byte) (*model.Table, error) {
	codec, err := r.ForName(name)
	if err != nil {
		return nil, err
	}
	table, err := codec.Decode(data)
	if err != nil {
		if errors.Is(err, common.ErrLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLoad, name, err)
	}
	return table, nil
}

// Encode serializes table in the format matching name, falling back to an
// Excel workbook when that format cannot be written.
func (r *Registry) Encode(name string, table *model.Table) ([]byte, error) {
	codec, err := r.ForName(name)
	if err != nil {
		codec = r.fallback
	}
	data, err := codec.Encode(table)
	if errors.Is(err, ErrEncodeUnsupported) {
		return r.fallback.Encode(table)
	}
	return data, err
}

// headerNames fills blank header cells and disambiguates repeated names the
// way pandas does: "Unnamed: 3", then "Amount", "Amount.1".
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}
