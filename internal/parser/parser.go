// Package parser converts raw document bytes into extracted financial
// records. Parsers are pure: they never touch storage and report failure
// through typed ParseErrors so the extraction engine can fall back.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/perabook/perabook/internal/model"
)

// Parser reads one document format.
type Parser interface {
	// Name identifies the format for error reporting.
	Name() string
	// Parse extracts records in input order. Records missing an amount
	// or a date are dropped by the caller, not here.
	Parse(ctx context.Context, data []byte) ([]model.ExtractedRecord, error)
}

// Registry dispatches uploads to parsers by filename extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry builds the default registry with every built-in parser.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.Register(NewCSVParser(), ".csv", ".txt")
	r.Register(NewXLSXParser(), ".xlsx", ".xls")
	r.Register(NewOFXParser(), ".ofx", ".qfx")
	r.Register(NewPDFParser(), ".pdf")
	return r
}

// Register binds a parser to one or more extensions.
func (r *Registry) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForFilename selects the parser for an uploaded file.
func (r *Registry) ForFilename(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file extension %q", ext)
	}
	return p, nil
}

// Extensions returns the registered extensions, used by submit validation.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
