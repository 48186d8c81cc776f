package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceSearchExecute(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "hotel", r.URL.Query().Get("category"))
		assert.Equal(t, "Tokyo", r.URL.Query().Get("near"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"id":"p1","name":"Hotel Gracery","address":"Shinjuku","rating":4.3,"price_level":3,"lat":35.69,"lng":139.70},
			{"id":"p2","name":"Park Hyatt","address":"Shinjuku","rating":4.7,"price_level":4,"lat":35.68,"lng":139.69}
		]}`))
	}))
	defer server.Close()

	resultCache := cache.New(time.Minute, time.Minute)
	tool := NewPlaceSearchTool(server.URL, resultCache, testLogger()).WithHTTPClient(server.Client())

	args := map[string]any{"destination": "Tokyo", "category": "hotel"}
	result := tool.Execute(context.Background(), args)
	require.False(t, result.Failed, result.Message)
	require.Len(t, result.Cards, 2)
	assert.Equal(t, "Hotel Gracery", result.Cards[0].Name)
	assert.Equal(t, "hotel", result.Cards[0].Category)

	// Second identical lookup is served from cache.
	again := tool.Execute(context.Background(), args)
	require.Len(t, again.Cards, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPlaceSearchExecuteProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	tool := NewPlaceSearchTool(server.URL, cache.New(time.Minute, time.Minute), testLogger()).
		WithHTTPClient(server.Client())

	result := tool.Execute(context.Background(), map[string]any{"destination": "Tokyo", "category": "hotel"})
	assert.True(t, result.Failed)
	assert.Contains(t, result.Message, "status 502")
}

func TestPlaceSearchExecuteMissingArgs(t *testing.T) {
	tool := NewPlaceSearchTool("http://unused", cache.New(time.Minute, time.Minute), testLogger())

	result := tool.Execute(context.Background(), map[string]any{"category": "hotel"})
	assert.True(t, result.Failed)
}
