package categorize

import (
	"context"
	"strings"
	"sync"

	"github.com/perabook/perabook/internal/service"
)

// MockCategorizer is a deterministic keyword-based categorizer for tests
// and offline development. It records every batch it receives.
type MockCategorizer struct {
	mu      sync.Mutex
	Err     error
	Batches [][]service.CategorizerRecord
}

var mockKeywords = []struct {
	keyword  string
	category string
}{
	{"salary", "salary"},
	{"payroll", "salary"},
	{"jollibee", "food"},
	{"grocery", "food"},
	{"grab", "transportation"},
	{"meralco", "utilities"},
	{"globe", "utilities"},
	{"pldt", "utilities"},
	{"rent", "rent"},
	{"gcash", "ewallet_transfer"},
	{"transfer", "bank_transfer"},
	{"fee", "transaction_fee"},
}

// Classify assigns categories by substring match against the description.
func (m *MockCategorizer) Classify(_ context.Context, records []service.CategorizerRecord) ([]service.CategorizerAssignment, error) {
	m.mu.Lock()
	m.Batches = append(m.Batches, records)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	assignments := make([]service.CategorizerAssignment, 0, len(records))
	for _, r := range records {
		desc := strings.ToLower(r.Description)
		assignment := service.CategorizerAssignment{
			ID:         r.ID,
			Category:   "other",
			Confidence: "very_low",
			Rationale:  "no keyword match",
		}
		for _, kw := range mockKeywords {
			if strings.Contains(desc, kw.keyword) {
				assignment.Category = kw.category
				assignment.Confidence = "high"
				assignment.Rationale = "matched keyword " + kw.keyword
				break
			}
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// BatchCount reports how many Classify calls were made.
func (m *MockCategorizer) BatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}
