package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/model"
)

// OFXParser reads OFX/QFX bank and credit card statements.
type OFXParser struct{}

// NewOFXParser creates an OFX statement parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Name identifies the format.
func (p *OFXParser) Name() string { return "ofx" }

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes common formatting issues in bank-produced OFX files:
// leading whitespace, mixed-case SEVERITY values, and SGML-style tags
// missing their closing bracket.
func (p *OFXParser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)
	content = tagFixRegex.ReplaceAllString(content, "$1>")
	return content
}

// Parse extracts records from an OFX/QFX statement.
func (p *OFXParser) Parse(ctx context.Context, data []byte) ([]model.ExtractedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(data))))
	if err != nil {
		return nil, common.NewParseError(p.Name(), err)
	}

	var records []model.ExtractedRecord

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			for _, tx := range stmt.BankTranList.Transactions {
				records = append(records, p.convert(tx))
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			for _, tx := range stmt.BankTranList.Transactions {
				records = append(records, p.convert(tx))
			}
		}
	}

	if len(records) == 0 {
		return nil, common.NewParseError(p.Name(), fmt.Errorf("statement contains no transactions"))
	}
	return records, nil
}

// convert maps one OFX transaction to an extracted record. OFX amounts are
// signed (negative for debits); the sign carries into the record as-is.
func (p *OFXParser) convert(tx ofxgo.Transaction) model.ExtractedRecord {
	amount := decimal.NewFromBigRat(&tx.TrnAmt.Rat, 2)

	description := strings.TrimSpace(string(tx.Name))
	if description == "" {
		description = strings.TrimSpace(string(tx.Memo))
	}
	if description == "" {
		description = model.UnknownDescription
	}

	var counterparty string
	if tx.Payee != nil {
		counterparty = strings.TrimSpace(string(tx.Payee.Name))
	}

	trnType := fmt.Sprintf("%v", tx.TrnType)
	kind := inferKind(amount, trnType, description)
	switch trnType {
	case "FEE", "SRVCHG":
		kind = model.KindFee
	case "XFER":
		if amount.Sign() < 0 {
			kind = model.KindTransferOut
		} else {
			kind = model.KindTransferIn
		}
	}

	// Bank statements are authoritative about their own records.
	return model.ExtractedRecord{
		OccurredAt:   tx.DtPosted.Time,
		Amount:       amount,
		Description:  description,
		Counterparty: counterparty,
		Reference:    string(tx.FiTID),
		Kind:         kind,
		Confidence:   95,
	}
}
