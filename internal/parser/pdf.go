package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

// PDFParser extracts transaction lines from text-based PDF statements.
// Scanned documents with no text layer fail parsing and rely on the
// engine's fallback.
type PDFParser struct{}

// NewPDFParser creates a PDF statement parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Name identifies the format.
func (p *PDFParser) Name() string { return "pdf" }

// txnLineRegex matches "date ... description ... amount" statement lines.
// Amounts may carry currency symbols, commas, and parenthesized negatives.
var txnLineRegex = regexp.MustCompile(
	`(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})\s+(.+?)\s+(\(?-?[₱$]?[\d,]+\.\d{2}\)?)\s*$`)

// Parse extracts records from the text layer of a PDF statement.
func (p *PDFParser) Parse(ctx context.Context, data []byte) ([]model.ExtractedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := p.extractText(data)
	if err != nil {
		return nil, common.NewParseError(p.Name(), err)
	}

	var records []model.ExtractedRecord
	for _, line := range strings.Split(text, "\n") {
		m := txnLineRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		occurredAt, dateErr := parseDate(m[1])
		amount, amountErr := parseAmount(m[3])
		if dateErr != nil || amountErr != nil {
			continue
		}

		description := strings.TrimSpace(m[2])
		if description == "" {
			description = model.UnknownDescription
		}

		// Layout recovery from flattened text is inherently lossy.
		records = append(records, model.ExtractedRecord{
			OccurredAt:  occurredAt,
			Amount:      amount,
			Description: description,
			Kind:        inferKind(amount, "", description),
			Confidence:  60,
		})
	}

	if len(records) == 0 {
		return nil, common.NewParseError(p.Name(), fmt.Errorf("no transaction lines found in text layer"))
	}
	return records, nil
}

func (p *PDFParser) extractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		pg := doc.Page(page)
		if pg.V.IsNull() {
			continue
		}
		content, err := pg.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
