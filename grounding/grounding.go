// Package grounding guards against answers that were not produced from the
// search index.
//
// The hosted model is instructed to use its file search tool, but sometimes
// answers from its own knowledge instead. Such answers cite no sources. The
// request is repeated once; if the second answer also cites nothing, the
// answer is replaced by a fixed message.
package grounding

import (
	"context"
	"log/slog"
	"time"

	"github.com/a-h/penaltysearch/metrics"
	"github.com/a-h/penaltysearch/search"
)

// FallbackMessage is shown instead of an answer that cites no documents.
const FallbackMessage = "你查詢的問題在目前的文件庫中沒有合適的結果，請更具體的描述問題，或更換其他詢問方式。"

// maxAttempts is the first call plus one retry.
const maxAttempts = 2

func New(log *slog.Logger, searcher search.Searcher, m *metrics.Metrics) *Checker {
	return &Checker{
		log:      log,
		searcher: searcher,
		metrics:  m,
	}
}

type Checker struct {
	log      *slog.Logger
	searcher search.Searcher
	metrics  *metrics.Metrics
}

type Outcome struct {
	// Result is empty when Fallback is set.
	Result   search.Result
	Attempts int
	Retried  bool
	// Fallback is set when no attempt produced a grounded answer.
	Fallback bool
	Message  string
}

// Search runs the request, retrying once if the answer is ungrounded.
// Errors from the search service are returned as-is and are not retried.
func (c *Checker) Search(ctx context.Context, req search.Request) (outcome Outcome, err error) {
	for outcome.Attempts < maxAttempts {
		outcome.Attempts++
		outcome.Retried = outcome.Attempts > 1

		start := time.Now()
		result, err := c.searcher.Search(ctx, req)
		c.metrics.ObserveAttempt(time.Since(start))
		if err != nil {
			c.metrics.ObserveOutcome(metrics.OutcomeError)
			return outcome, err
		}
		if result.Grounded() {
			c.log.Info("answer grounded", slog.Int("attempt", outcome.Attempts), slog.Int("sources", len(result.Sources)))
			c.metrics.ObserveOutcome(metrics.OutcomeGrounded)
			outcome.Result = result
			return outcome, nil
		}
		c.metrics.ObserveUngrounded()
		c.log.Warn("answer cites no sources", slog.Int("attempt", outcome.Attempts), slog.Int("textLength", len(result.Text)))
	}
	c.metrics.ObserveOutcome(metrics.OutcomeFallback)
	outcome.Fallback = true
	outcome.Message = FallbackMessage
	return outcome, nil
}
