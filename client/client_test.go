package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/a-h/penaltysearch/models"
	"github.com/google/go-cmp/cmp"
)

func TestQueryPost(t *testing.T) {
	expected := models.QueryPostResponse{
		Answer: "### 1. [甲銀行](https://www.fsc.gov.tw/1)",
		Sources: []models.Source{
			{FileID: "fsc_pen_20240101_0001", Title: "甲銀行", Date: "2024-01-01", URL: "https://www.fsc.gov.tw/1"},
		},
		Retried: true,
	}
	var received models.QueryPostRequest
	var authorization, path string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authorization = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expected)
	}))
	defer s.Close()

	c := New(s.URL, "test-api-key")
	req := models.QueryPostRequest{
		Text:    "洗錢防制",
		Filters: &models.QueryFilters{SourceUnits: []string{"銀行局"}},
	}
	resp, err := c.QueryPost(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(expected, resp); diff != "" {
		t.Errorf("unexpected response: %v", diff)
	}
	if diff := cmp.Diff(req, received); diff != "" {
		t.Errorf("unexpected request: %v", diff)
	}
	if diff := cmp.Diff("/api/query", path); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff("test-api-key", authorization); diff != "" {
		t.Error(diff)
	}
}

func TestQueryPostError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer s.Close()

	_, err := New(s.URL, "").QueryPost(context.Background(), models.QueryPostRequest{Text: "洗錢防制"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestHealth(t *testing.T) {
	status := http.StatusOK
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(status)
	}))
	defer s.Close()
	c := New(s.URL, "")

	if err := c.Health(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	status = http.StatusServiceUnavailable
	if err := c.Health(context.Background()); err == nil {
		t.Error("expected an error")
	}
}
