// Package answer runs a question through the search service and turns the
// result into a linked answer.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/a-h/penaltysearch/cases"
	"github.com/a-h/penaltysearch/citations"
	"github.com/a-h/penaltysearch/grounding"
	"github.com/a-h/penaltysearch/models"
	"github.com/a-h/penaltysearch/prompts"
	"github.com/a-h/penaltysearch/search"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func New(log *slog.Logger, p prompts.Prompts, catalog cases.Catalog, checker *grounding.Checker, linker *citations.Linker) *Service {
	return &Service{
		log:     log,
		prompts: p,
		catalog: catalog,
		checker: checker,
		linker:  linker,
	}
}

type Service struct {
	log     *slog.Logger
	prompts prompts.Prompts
	catalog cases.Catalog
	checker *grounding.Checker
	linker  *citations.Linker
}

// Answer asks the search service the question. If the service does not ground
// its answer on the case database, the response carries the fallback message
// instead of the answer.
func (s *Service) Answer(ctx context.Context, req models.QueryPostRequest) (resp models.QueryPostResponse, err error) {
	start := time.Now()
	instruction, err := s.instruction(ctx)
	if err != nil {
		return resp, err
	}

	outcome, err := s.checker.Search(ctx, search.Request{
		Query:             Query(req.Text, req.Filters),
		SystemInstruction: instruction,
	})
	if err != nil {
		return resp, fmt.Errorf("answer: search failed: %w", err)
	}
	resp.Retried = outcome.Retried
	resp.Sources = []models.Source{}
	if outcome.Fallback {
		s.log.Warn("no grounded answer", slog.Int("attempts", outcome.Attempts), slog.Duration("duration", time.Since(start)))
		resp.Fallback = true
		resp.Message = outcome.Message
		return resp, nil
	}

	linked, err := s.linker.Link(ctx, outcome.Result)
	if err != nil {
		return resp, fmt.Errorf("answer: failed to link citations: %w", err)
	}
	resp.Answer = linked.Text
	resp.CitedSources = len(outcome.Result.Sources)
	for _, c := range linked.Cases {
		title := c.DisplayName
		if title == "" {
			title = c.FileID
		}
		resp.Sources = append(resp.Sources, models.Source{
			FileID:  c.FileID,
			Title:   title,
			Date:    c.Date,
			URL:     c.OriginalURL,
			Snippet: c.Snippet,
		})
	}
	s.log.Info("answered",
		slog.Int("attempts", outcome.Attempts),
		slog.Int("citedSources", resp.CitedSources),
		slog.Int("cases", len(resp.Sources)),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}

func (s *Service) instruction(ctx context.Context) (string, error) {
	var lawLinks map[string]string
	if s.linker.Mode() == citations.ModePrompt {
		var err error
		lawLinks, err = s.catalog.LawLinks(ctx)
		if err != nil {
			return "", fmt.Errorf("answer: failed to get law links: %w", err)
		}
	}
	instruction, err := s.prompts.Instruction(lawLinks)
	if err != nil {
		return "", fmt.Errorf("answer: failed to build instruction: %w", err)
	}
	return instruction, nil
}

var printer = message.NewPrinter(language.English)

// Query appends the filters to the question as a list of conditions for the
// model to apply.
func Query(text string, f *models.QueryFilters) string {
	text = strings.TrimSpace(text)
	if f == nil {
		return text
	}
	var conditions []string
	if f.StartDate != "" && f.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("日期範圍：%s 到 %s", f.StartDate, f.EndDate))
	}
	if len(f.SourceUnits) > 0 {
		conditions = append(conditions, "來源單位："+strings.Join(f.SourceUnits, "、"))
	}
	if f.MinPenalty > 0 {
		conditions = append(conditions, printer.Sprintf("裁罰金額至少：%d 元", f.MinPenalty))
	}
	if len(conditions) == 0 {
		return text
	}
	return text + "\n\n篩選條件：\n- " + strings.Join(conditions, "\n- ")
}
