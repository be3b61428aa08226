package categorize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"
)

const systemPrompt = "You are a financial transaction categorizer for Philippine " +
	"personal and small-business finances. You MUST respond with ONLY a valid JSON " +
	"array. Do not include any explanatory text, markdown formatting, or commentary " +
	"before or after the JSON. Start your response directly with [ and end with ]."

// buildPrompt renders the batch into the user message. Records travel as a
// JSON array so descriptions with quotes or newlines survive intact.
func buildPrompt(records []service.CategorizerRecord) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Categorize each transaction below.\n\n")
	b.WriteString("Allowed categories (use exactly these tokens):\n")
	b.WriteString(strings.Join(model.Categories, ", "))
	b.WriteString("\n\nAllowed transaction_type values: income, expense, transfer_in, transfer_out, fee, refund, other.\n")
	b.WriteString("Allowed confidence values: high, medium, low, very_low.\n\n")
	b.WriteString("For every input record return one object with fields: " +
		`"id" (copied verbatim), "transaction_type", "category", "confidence", ` +
		`and "reasoning" (one short sentence).` + "\n\n")
	b.WriteString("Transactions:\n")
	b.Write(payload)

	if _, err := fmt.Fprintf(&b, "\n\nReturn a JSON array with exactly %d objects.", len(records)); err != nil {
		return "", err
	}
	return b.String(), nil
}
