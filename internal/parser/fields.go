package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perabook/perabook/internal/model"
)

// fieldSynonyms maps canonical field names to the header spellings seen in
// bank and e-wallet exports. Matching is case-insensitive.
var fieldSynonyms = map[string][]string{
	"date":        {"date", "transaction_date", "transaction date", "txn_date", "datetime", "posted", "posting date"},
	"amount":      {"amount", "value", "sum", "total", "debit/credit"},
	"description": {"description", "details", "memo", "particulars", "narrative", "transaction details"},
	"reference":   {"reference", "ref", "reference_number", "reference no", "transaction_id", "txn_id"},
	"type":        {"type", "transaction_type", "txn_type", "debit_credit", "dr/cr"},
	"counterparty": {
		"counterparty", "payee", "merchant", "recipient", "sender", "to/from",
	},
}

// dateLayouts are tried in order when parsing occurrence dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseDate parses an occurrence date from the formats seen in exports.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", value)
}

// amountReplacer strips currency decorations before decimal parsing.
var amountReplacer = strings.NewReplacer(
	"₱", "", "PHP", "", "Php", "", "php", "",
	"$", "", "USD", "",
	",", "", " ", "",
)

// parseAmount parses a monetary amount into fixed-point decimal.
// Parenthesized values are negative, per statement convention.
func parseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(amountReplacer.Replace(value))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q", value)
	}
	return d, nil
}

var incomeKeywords = []string{"salary", "income", "received", "deposit", "remittance", "payout"}
var expenseKeywords = []string{"purchase", "bill", "fee", "charge", "withdrawal", "payment"}

// inferKind guesses the transaction kind from a type-hint column, the
// description, and finally the amount sign.
func inferKind(amount decimal.Decimal, typeHint, description string) model.TransactionKind {
	hint := strings.ToLower(strings.TrimSpace(typeHint))
	switch {
	case hint == "":
		// fall through to keyword inference
	case strings.Contains(hint, "transfer") && strings.Contains(hint, "in"):
		return model.KindTransferIn
	case strings.Contains(hint, "transfer") && strings.Contains(hint, "out"):
		return model.KindTransferOut
	case strings.Contains(hint, "fee"):
		return model.KindFee
	case strings.Contains(hint, "refund"):
		return model.KindRefund
	case strings.Contains(hint, "debit"), strings.Contains(hint, "expense"), strings.Contains(hint, "out"):
		return model.KindExpense
	case strings.Contains(hint, "credit"), strings.Contains(hint, "income"), strings.Contains(hint, "in"):
		return model.KindIncome
	}

	desc := strings.ToLower(description)
	for _, kw := range incomeKeywords {
		if strings.Contains(desc, kw) {
			return model.KindIncome
		}
	}
	for _, kw := range expenseKeywords {
		if strings.Contains(desc, kw) {
			return model.KindExpense
		}
	}

	if amount.Sign() < 0 {
		return model.KindExpense
	}
	return model.KindIncome
}

// normalizeHeaders lowercases and trims a header row.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

// columnIndex finds the column for a canonical field, or -1.
func columnIndex(headers []string, field string) int {
	for _, synonym := range fieldSynonyms[field] {
		for i, h := range headers {
			if h == synonym {
				return i
			}
		}
	}
	return -1
}

// rowRecord builds one ExtractedRecord from a mapped tabular row. It
// returns false when the row lacks a usable amount or date; other field
// failures degrade to sentinels instead of dropping the record.
func rowRecord(headers, row []string) (model.ExtractedRecord, bool) {
	cell := func(field string) string {
		idx := columnIndex(headers, field)
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	occurredAt, err := parseDate(cell("date"))
	if err != nil {
		return model.ExtractedRecord{}, false
	}
	amount, err := parseAmount(cell("amount"))
	if err != nil {
		return model.ExtractedRecord{}, false
	}

	confidence := 90
	description := cell("description")
	if description == "" {
		description = model.UnknownDescription
		confidence -= 20
	}

	record := model.ExtractedRecord{
		OccurredAt:   occurredAt,
		Amount:       amount,
		Description:  description,
		Reference:    cell("reference"),
		Counterparty: cell("counterparty"),
		Kind:         inferKind(amount, cell("type"), description),
		Confidence:   confidence,
	}
	return record, true
}
