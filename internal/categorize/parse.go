package categorize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/perabook/perabook/internal/model"
	"github.com/perabook/perabook/internal/service"
)

// assignmentsSchemaJSON pins the provider contract: an array of assignment
// objects with closed vocabularies. Anything outside it is a provider bug,
// not data.
const assignmentsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "category"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "transaction_type": {"type": "string"},
      "category": {"type": "string", "minLength": 1},
      "confidence": {"type": "string"},
      "reasoning": {"type": "string"}
    }
  }
}`

var assignmentsSchema = jsonschema.MustCompileString("assignments.json", assignmentsSchemaJSON)

// parseAssignments extracts the JSON array from the model output, validates
// it against the schema, and normalizes vocabularies. Unknown categories
// degrade to "other"; unknown confidence tokens degrade to "very_low".
func parseAssignments(content string) ([]service.CategorizerAssignment, error) {
	content = extractJSONArray(content)
	if content == "" {
		return nil, fmt.Errorf("no JSON array in provider response")
	}

	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse provider JSON: %w", err)
	}
	if err := assignmentsSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("provider response failed schema validation: %w", err)
	}

	var assignments []service.CategorizerAssignment
	if err := json.Unmarshal([]byte(content), &assignments); err != nil {
		return nil, fmt.Errorf("failed to decode assignments: %w", err)
	}

	for i := range assignments {
		assignments[i].Category = model.NormalizeCategory(assignments[i].Category)
		assignments[i].Confidence = normalizeConfidence(assignments[i].Confidence)
	}
	return assignments, nil
}

// extractJSONArray strips markdown fences and any prose around the array.
func extractJSONArray(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func normalizeConfidence(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if model.ValidConfidenceBand(token) {
		return token
	}
	return model.ConfidenceVeryLow
}
