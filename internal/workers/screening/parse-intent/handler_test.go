// internal/workers/screening/parse-intent/handler_test.go
package parseintent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/cache"
	"assistant-workers/internal/common/logger/loggertest"
	"assistant-workers/internal/screening"
)

// memoryStore is a minimal in-process cache.Store for tests.
type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, cache.ErrMiss
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newIntentServer(t *testing.T, hits *int32, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/ai/parse-intent", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
}

func newTestHandler(t *testing.T, baseURL string, store cache.Store) *Handler {
	t.Helper()
	h, err := NewHandler(&Config{
		LLMBaseURL: baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		CacheTTL:   time.Minute,
	}, store, loggertest.New(t))
	require.NoError(t, err)
	return h
}

func TestHandler_Execute_ResolvesIntent(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits,
		`{"intent":"screen","sector":"tech","limit":5,"metrics":["dividendYield"],"filters":{"peRatio_lt":20}}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	output, err := h.Execute(context.Background(), &Input{Query: "cheap tech stocks"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeIntent, output.Outcome)
	assert.Nil(t, output.Clarification)
	require.NotNil(t, output.Intent)
	assert.Equal(t, "Information Technology", output.Intent.Sector)
	require.NotNil(t, output.Intent.Limit)
	assert.Equal(t, 5, *output.Intent.Limit)
	assert.Contains(t, output.Intent.Metrics, screening.MetricPrice)
	assert.Contains(t, output.Intent.Metrics, screening.MetricPERatio)
	assert.Contains(t, output.Intent.Metrics, screening.MetricDividendYield)
	require.Len(t, output.Intent.Filters, 1)
	assert.Equal(t, "peRatio_lt", output.Intent.Filters[0].Key())
	assert.NotEmpty(t, output.SessionID, "session id is generated when absent")
}

func TestHandler_Execute_SessionIDPreserved(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"intent":"screen","sector":"energy"}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	output, err := h.Execute(context.Background(), &Input{Query: "energy stocks", SessionID: "session-7"})
	require.NoError(t, err)

	assert.Equal(t, "session-7", output.SessionID)
}

func TestHandler_Execute_SecondCallServedFromCache(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"intent":"screen","sector":"energy"}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	ctx := context.Background()

	_, err := h.Execute(ctx, &Input{Query: "energy stocks"})
	require.NoError(t, err)
	_, err = h.Execute(ctx, &Input{Query: "energy stocks"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestHandler_Execute_FollowUpAdoptsPriorFilters(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"intent":"screen","sector":"energy"}`)
	defer srv.Close()

	limit := 5
	var prior screening.Intent
	prior.Sector = "Information Technology"
	prior.Limit = &limit
	prior.Metrics = []screening.Metric{screening.MetricPrice, screening.MetricPERatio}
	require.NoError(t, (&prior.Filters).UnmarshalJSON([]byte(`{"peRatio_lt":20}`)))

	h := newTestHandler(t, srv.URL, newMemoryStore())
	output, err := h.Execute(context.Background(), &Input{
		Query:       "how about the energy sector?",
		PriorIntent: &prior,
	})
	require.NoError(t, err)

	require.Equal(t, OutcomeIntent, output.Outcome)
	assert.Equal(t, "Energy", output.Intent.Sector)
	require.Len(t, output.Intent.Filters, 1)
	assert.Equal(t, "peRatio_lt", output.Intent.Filters[0].Key())
	require.NotNil(t, output.Intent.Limit)
	assert.Equal(t, 5, *output.Intent.Limit)
}

func TestHandler_Execute_MissingSectorClarification(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"intent":"screen","filters":{"peRatio_lt":20}}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	output, err := h.Execute(context.Background(), &Input{Query: "cheap stocks"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeClarification, output.Outcome)
	assert.Nil(t, output.Intent)
	require.NotNil(t, output.Clarification)
	assert.Equal(t, "Missing sector in query. Please specify a valid sector.", output.Clarification.Message)
}

func TestHandler_Execute_UnknownSectorClarification(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"intent":"screen","sector":"luxury"}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	output, err := h.Execute(context.Background(), &Input{Query: "luxury stocks"})
	require.NoError(t, err)

	require.Equal(t, OutcomeClarification, output.Outcome)
	assert.Contains(t, output.Clarification.Message, "'luxury' is not a valid sector")
	assert.Equal(t, screening.ValidSectors(), output.Clarification.ValidSectors)
}

func TestHandler_Execute_InvalidFilterKey(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"intent":"screen","sector":"tech","filters":{"price_under":100}}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	_, err := h.Execute(context.Background(), &Input{Query: "stocks under 100"})

	var invalidKey *screening.InvalidFilterKeyError
	require.ErrorAs(t, err, &invalidKey)
	assert.Equal(t, "price_under", invalidKey.Key)
}

func TestHandler_Execute_SchemaInvalidResponseClarifies(t *testing.T) {
	var hits int32
	srv := newIntentServer(t, &hits, `{"sector":"tech","filters":{"peRatio_lt":"cheap"}}`)
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	output, err := h.Execute(context.Background(), &Input{Query: "cheap tech"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeClarification, output.Outcome)
	require.NotNil(t, output.Clarification)
	assert.Contains(t, output.Clarification.Message, "rephrase")
}

func TestHandler_Execute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	h, err := NewHandler(&Config{
		LLMBaseURL: srv.URL,
		Timeout:    50 * time.Millisecond,
		MaxRetries: 1,
		CacheTTL:   time.Minute,
	}, newMemoryStore(), loggertest.New(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = h.Execute(ctx, &Input{Query: "slow"})
	assert.True(t, errors.Is(err, ErrIntentAPITimeout))
}

func TestHandler_Execute_ServerErrorSurfacesParsingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newTestHandler(t, srv.URL, newMemoryStore())
	_, err := h.Execute(context.Background(), &Input{Query: "broken"})

	assert.True(t, errors.Is(err, ErrIntentParsingFailed))
}
