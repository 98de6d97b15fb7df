package grounding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/a-h/penaltysearch/metrics"
	"github.com/a-h/penaltysearch/search"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The genai transport chain registers an opencensus view worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type response struct {
	result search.Result
	err    error
}

type fakeSearcher struct {
	responses []response
	requests  []search.Request
}

func (f *fakeSearcher) Search(ctx context.Context, req search.Request) (search.Result, error) {
	f.requests = append(f.requests, req)
	if len(f.requests) > len(f.responses) {
		return search.Result{}, errors.New("unexpected call")
	}
	r := f.responses[len(f.requests)-1]
	return r.result, r.err
}

var (
	hallucinated = search.Result{Text: "### 1. 捏造的案例"}
	grounded     = search.Result{
		Text: "### 1. 某銀行",
		Sources: []search.Source{
			{Title: "fsc_pen_20240101_0001.md", Snippet: "裁罰內容"},
		},
	}
)

func TestSearch(t *testing.T) {
	upstreamErr := errors.New("upstream unavailable")
	tests := []struct {
		name              string
		responses         []response
		expectedOutcome   Outcome
		expectedErr       error
		expectedCalls     int
		expectedFallbacks float64
	}{
		{
			name:      "grounded answers pass through unchanged",
			responses: []response{{result: grounded}},
			expectedOutcome: Outcome{
				Result:   grounded,
				Attempts: 1,
			},
			expectedCalls: 1,
		},
		{
			name:      "ungrounded answers are retried once",
			responses: []response{{result: hallucinated}, {result: grounded}},
			expectedOutcome: Outcome{
				Result:   grounded,
				Attempts: 2,
				Retried:  true,
			},
			expectedCalls: 2,
		},
		{
			name:      "two ungrounded answers produce the fallback message",
			responses: []response{{result: hallucinated}, {result: hallucinated}},
			expectedOutcome: Outcome{
				Attempts: 2,
				Retried:  true,
				Fallback: true,
				Message:  FallbackMessage,
			},
			expectedCalls:     2,
			expectedFallbacks: 1,
		},
		{
			name:      "errors are returned without a retry",
			responses: []response{{err: upstreamErr}},
			expectedOutcome: Outcome{
				Attempts: 1,
			},
			expectedErr:   upstreamErr,
			expectedCalls: 1,
		},
		{
			name:      "errors on the retry are returned",
			responses: []response{{result: hallucinated}, {err: upstreamErr}},
			expectedOutcome: Outcome{
				Attempts: 2,
				Retried:  true,
			},
			expectedErr:   upstreamErr,
			expectedCalls: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSearcher{responses: tt.responses}
			m := metrics.New(prometheus.NewRegistry())
			c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), fs, m)

			req := search.Request{Query: "洗錢防制", SystemInstruction: "instruction"}
			outcome, err := c.Search(context.Background(), req)
			if !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected error %v, got %v", tt.expectedErr, err)
			}
			if diff := cmp.Diff(tt.expectedOutcome, outcome); diff != "" {
				t.Error(diff)
			}
			if len(fs.requests) != tt.expectedCalls {
				t.Errorf("expected %d calls, got %d", tt.expectedCalls, len(fs.requests))
			}
			for i, r := range fs.requests {
				if r != req {
					t.Errorf("call %d: expected the identical request, got %#v", i, r)
				}
			}
			if n := testutil.ToFloat64(m.Attempts); n != float64(tt.expectedCalls) {
				t.Errorf("expected %d attempts recorded, got %v", tt.expectedCalls, n)
			}
			if n := testutil.ToFloat64(m.Searches.WithLabelValues(metrics.OutcomeFallback)); n != tt.expectedFallbacks {
				t.Errorf("expected %v fallbacks recorded, got %v", tt.expectedFallbacks, n)
			}
		})
	}
}

func TestFallbackNeverContainsUngroundedText(t *testing.T) {
	fs := &fakeSearcher{responses: []response{{result: hallucinated}, {result: hallucinated}}}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), fs, nil)

	outcome, err := c.Search(context.Background(), search.Request{Query: "q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Result.Text != "" {
		t.Errorf("expected the ungrounded text to be discarded, got %q", outcome.Result.Text)
	}
	if strings.Contains(outcome.Message, hallucinated.Text) {
		t.Errorf("fallback message contains the ungrounded text")
	}
}
