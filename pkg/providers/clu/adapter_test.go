package clu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/resilience"
)

func TestRecognizeParsesPrediction(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/language/:analyze-conversations" || r.URL.Query().Get("api-version") != defaultAPIVersion {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"kind":"ConversationResult","result":{"query":"Ich heiße Anna","prediction":{"topIntent":"enterInformation","projectKind":"Conversation","entities":[{"category":"Name","text":"Anna","confidenceScore":1}]}}}`))
	}))
	defer srv.Close()

	a, err := NewAdapter(Config{Endpoint: srv.URL + "/", APIKey: "key", Project: "sprachbot", Deployment: "prod"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := a.Recognize(context.Background(), "Ich heiße Anna", "de-DE")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.TopIntent != nlu.IntentEnterInformation {
		t.Fatalf("unexpected intent %q", res.TopIntent)
	}
	if e, ok := res.Find("name"); !ok || e.Text != "Anna" {
		t.Fatalf("expected Name entity, got %+v", res.Entities)
	}
	if got.Parameters.ProjectName != "sprachbot" || got.AnalysisInput.ConversationItem.Language != "de" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestRecognizeErrors(t *testing.T) {
	cases := []struct {
		status    int
		rateLimit bool
		calls     int32
	}{
		{http.StatusTooManyRequests, true, 1},
		{http.StatusBadRequest, false, 1},
		{http.StatusInternalServerError, false, 3},
	}
	for _, tc := range cases {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"code":"x"}}`))
		}))
		a, _ := NewAdapter(Config{Endpoint: srv.URL, APIKey: "key", Project: "p", Deployment: "d", MaxRetries: 2, Backoff: time.Millisecond})
		_, err := a.Recognize(context.Background(), "ja", "de-DE")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if errorsx.Reason(err) != errorsx.ReasonNLURecognize {
			t.Fatalf("status %d: unexpected reason %s", tc.status, errorsx.Reason(err))
		}
		if resilience.IsRateLimit(err) != tc.rateLimit {
			t.Fatalf("status %d: rate limit flag mismatch", tc.status)
		}
		if got := calls.Load(); got != tc.calls {
			t.Fatalf("status %d: expected %d calls, got %d", tc.status, tc.calls, got)
		}
	}
}

func TestRecognizeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AnalysisInput.ConversationItem.Text != "Anna" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"prediction":{"topIntent":"enterInformation","entities":[]}}}`))
	}))
	defer srv.Close()

	a, _ := NewAdapter(Config{Endpoint: srv.URL, APIKey: "key", Project: "p", Deployment: "d", Backoff: time.Millisecond})
	res, err := a.Recognize(context.Background(), "Anna", "de-DE")
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.TopIntent != nlu.IntentEnterInformation || calls.Load() != 2 {
		t.Fatalf("expected success on second attempt, got %+v after %d calls", res, calls.Load())
	}
}

func TestNewAdapterRequiresSettings(t *testing.T) {
	if _, err := NewAdapter(Config{Endpoint: "https://x"}); err == nil {
		t.Fatalf("expected error")
	}
}
