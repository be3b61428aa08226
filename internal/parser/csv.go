package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

// CSVParser reads delimited statement exports. The delimiter is sniffed
// from the header line since e-wallet exports disagree on it.
type CSVParser struct{}

// NewCSVParser creates a CSV statement parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Name identifies the format.
func (p *CSVParser) Name() string { return "csv" }

// Parse extracts records from a delimited export.
func (p *CSVParser) Parse(ctx context.Context, data []byte) ([]model.ExtractedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, common.NewParseError(p.Name(), fmt.Errorf("empty document"))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, common.NewParseError(p.Name(), err)
	}
	if len(rows) < 2 {
		return nil, common.NewParseError(p.Name(), fmt.Errorf("no data rows"))
	}

	headers := normalizeHeaders(rows[0])
	if columnIndex(headers, "date") < 0 || columnIndex(headers, "amount") < 0 {
		return nil, common.NewParseError(p.Name(), fmt.Errorf("no date/amount columns in header"))
	}

	var records []model.ExtractedRecord
	for _, row := range rows[1:] {
		if record, ok := rowRecord(headers, row); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// sniffDelimiter picks the most frequent candidate delimiter on the first
// line. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	best := ','
	bestCount := strings.Count(string(line), ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if count := strings.Count(string(line), string(candidate)); count > bestCount {
			best = candidate
			bestCount = count
		}
	}
	return best
}
