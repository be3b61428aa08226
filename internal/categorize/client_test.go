package categorize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perabook/perabook/internal/common"
	"github.com/perabook/perabook/internal/service"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, service.Categorizer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)
	return srv, c
}

func completionReply(content string) []byte {
	reply := map[string]any{
		"id":    "gen-1",
		"model": "test",
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return b
}

var testRecords = []service.CategorizerRecord{
	{ID: "c-1", Date: "2026-02-01", Amount: "-185.00", Description: "GRAB RIDE MAKATI"},
	{ID: "c-2", Date: "2026-02-02", Amount: "25000.00", Description: "SALARY FEBRUARY"},
}

func TestClassify(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["messages"])

		_, _ = w.Write(completionReply("```json\n" + `[
			{"id": "c-1", "transaction_type": "expense", "category": "transportation", "confidence": "high", "reasoning": "ride hailing"},
			{"id": "c-2", "transaction_type": "income", "category": "salary", "confidence": "high", "reasoning": "payroll credit"}
		]` + "\n```"))
	})

	assignments, err := c.Classify(context.Background(), testRecords)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "transportation", assignments[0].Category)
	assert.Equal(t, "salary", assignments[1].Category)
	assert.Equal(t, "high", assignments[1].Confidence)
}

func TestClassifyUnknownVocabularyDegrades(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completionReply(`Here are the results: [{"id": "c-1", "category": "space_travel", "confidence": "HUGE"}]`))
	})

	assignments, err := c.Classify(context.Background(), testRecords[:1])
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "other", assignments[0].Category)
	assert.Equal(t, "very_low", assignments[0].Confidence)
}

func TestClassifyRateLimit(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Classify(context.Background(), testRecords)
	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
	assert.ErrorIs(t, err, common.ErrRateLimit)
}

func TestClassifyServerError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Classify(context.Background(), testRecords)
	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
}

func TestClassifyBadRequestNotRetryable(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Classify(context.Background(), testRecords)
	require.Error(t, err)
	assert.False(t, common.IsRetryable(err))
}

func TestClassifyMalformedResponse(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(completionReply("I could not categorize these transactions."))
	})

	_, err := c.Classify(context.Background(), testRecords)
	require.Error(t, err)
	assert.False(t, common.IsRetryable(err))
}

func TestClassifySchemaViolation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		// Array of strings, not assignment objects.
		_, _ = w.Write(completionReply(`["transportation", "salary"]`))
	})

	_, err := c.Classify(context.Background(), testRecords)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestClassifyEmptyBatch(t *testing.T) {
	c, err := NewClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	assignments, err := c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, assignments)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestNewClientRejectsBadConfig(t *testing.T) {
	_, err := NewClient(Config{APIKey: "key", Temperature: 3.5})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = NewClient(Config{APIKey: "key", MaxTokens: -1})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
