package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanPostsUtteranceAndContext(t *testing.T) {
	var got planRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"steps": ["go to 1 2 3"], "response": "moving"}`))
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL)
	p, err := svc.Plan(context.Background(), "come here", Snapshot{
		Inventory:      map[string]int{"torch": 3},
		RemainingSteps: []string{"mine iron"},
	})
	require.NoError(t, err)

	assert.Equal(t, "come here", got.Utterance)
	assert.Equal(t, 3, got.Context.Inventory["torch"])
	assert.Equal(t, []string{"mine iron"}, got.Context.RemainingSteps)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "moving", p.Response)
}

func TestPlanSubstitutesFallbackOnMalformedOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("total gibberish, no json here"))
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL)
	p, err := svc.Plan(context.Background(), "do something", Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, p.Steps)
	assert.NotEmpty(t, p.Response)
}

func TestPlanErrorsOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewHTTPService(srv.URL)
	_, err := svc.Plan(context.Background(), "do something", Snapshot{})
	require.Error(t, err)
}
