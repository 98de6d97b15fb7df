package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/a-h/penaltysearch/models"
	"github.com/charmbracelet/glamour"
)

type QueryCommand struct {
	ServiceFlags `embed:""`
	Text         string   `arg:"" help:"The question to ask."`
	StartDate    string   `help:"Only include cases from this date (YYYY-MM-DD)."`
	EndDate      string   `help:"Only include cases up to this date (YYYY-MM-DD)."`
	SourceUnit   []string `help:"Only include cases from these FSC bureaus, e.g. 銀行局."`
	MinPenalty   int64    `help:"Only include cases with at least this fine, in NT$." default:"0"`
	JSON         bool     `help:"Print the JSON response instead of formatted markdown." default:"false"`
	LogLevel     string   `help:"The log level to use." env:"LOG_LEVEL" default:"warn"`
}

func (c QueryCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	req := models.QueryPostRequest{
		Text: c.Text,
	}
	if c.StartDate != "" || c.EndDate != "" || len(c.SourceUnit) > 0 || c.MinPenalty != 0 {
		req.Filters = &models.QueryFilters{
			StartDate:   c.StartDate,
			EndDate:     c.EndDate,
			SourceUnits: c.SourceUnit,
			MinPenalty:  c.MinPenalty,
		}
	}
	if err = req.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	svc, err := c.newService(ctx, log, nil)
	if err != nil {
		return err
	}
	defer svc.close()

	resp, err := svc.answer.Answer(ctx, req)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := r.Render(formatResponse(resp))
	if err != nil {
		return fmt.Errorf("failed to render answer: %w", err)
	}
	fmt.Print(out)
	return nil
}

// formatResponse converts the answer and its sources to markdown for display
// in the terminal.
func formatResponse(resp models.QueryPostResponse) string {
	var sb strings.Builder
	if resp.Retried {
		sb.WriteString("> 🔄 已重新查詢\n\n")
	}
	if resp.Fallback {
		sb.WriteString("⚠️ ")
		sb.WriteString(resp.Message)
		sb.WriteString("\n")
		return sb.String()
	}
	sb.WriteString(strings.TrimSpace(resp.Answer))
	sb.WriteString("\n")
	if len(resp.Sources) == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n---\n\n### 📚 參考來源 (%d 筆，依時間排序）\n\n", len(resp.Sources))
	for i, s := range resp.Sources {
		fmt.Fprintf(&sb, "%d. ", i+1)
		if s.URL != "" {
			fmt.Fprintf(&sb, "[%s](%s)", s.Title, s.URL)
		} else {
			sb.WriteString(s.Title)
		}
		if s.Date != "" {
			fmt.Fprintf(&sb, " (%s)", s.Date)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
