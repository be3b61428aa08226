package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

// XLSXParser reads spreadsheet exports. Only the first sheet is
// considered; first row is the header.
type XLSXParser struct{}

// NewXLSXParser creates a spreadsheet statement parser.
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

// Name identifies the format.
func (p *XLSXParser) Name() string { return "xlsx" }

// Parse extracts records from a spreadsheet export.
func (p *XLSXParser) Parse(ctx context.Context, data []byte) ([]model.ExtractedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewParseError(p.Name(), err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.NewParseError(p.Name(), fmt.Errorf("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0])
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
