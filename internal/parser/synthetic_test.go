package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perabook/perabook/internal/model"
)

func TestSynthesize(t *testing.T) {
	ref := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	records := Synthesize("gcash", ref)
	require.Len(t, records, SyntheticCount)

	for _, r := range records {
		assert.Less(t, r.Confidence, model.LowConfidenceThreshold,
			"synthesized records must sit below the review threshold")
		assert.GreaterOrEqual(t, r.Confidence, 30)
		assert.False(t, r.Amount.IsZero())
		assert.NotEmpty(t, r.Description)
		assert.NotEmpty(t, r.Reference)
		assert.True(t, r.OccurredAt.Before(ref), "synthesized dates precede the upload")
		assert.True(t, model.ValidTransactionKind(r.Kind))
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	ref := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	first := Synthesize("bpi", ref)
	second := Synthesize("bpi", ref)
	assert.Equal(t, first, second, "same platform and reference must synthesize identically")

	other := Synthesize("paymaya", ref)
	assert.NotEqual(t, first, other, "different platforms draw from different profiles")
}

func TestSynthesizeUnknownPlatform(t *testing.T) {
	records := Synthesize("some_future_wallet", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, records, SyntheticCount)
	for _, r := range records {
		assert.NotEmpty(t, r.Description)
	}
}
