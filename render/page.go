package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/penaltysearch/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("page.html").
	Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).
	ParseFS(templateFS, "templates/*.html"))

// SourceUnits are the FSC bureaus that publish penalty announcements.
var SourceUnits = []string{"銀行局", "證券期貨局", "保險局", "檢查局"}

// Page is the query form, and the result of the last query, if any.
type Page struct {
	Version      string
	QuickQueries []string
	SourceUnits  []string

	Query   string
	Filters models.QueryFilters

	// Warning is shown instead of a result, e.g. when the question is empty.
	Warning string
	// Error is shown when the query failed.
	Error  string
	Result *Result
}

func (p Page) MaxQueryLength() int {
	return models.MaxQueryLength
}

// HasUnit reports whether the source unit filter includes unit.
func (p Page) HasUnit(unit string) bool {
	for _, u := range p.Filters.SourceUnits {
		if u == unit {
			return true
		}
	}
	return false
}

type Result struct {
	Answer   template.HTML
	Retried  bool
	Fallback bool
	Message  string
	Sources  []models.Source
	// CitedSources counts the cited excerpts, not the cases.
	CitedSources int
}

// NewResult renders the answer of a query response.
func NewResult(resp models.QueryPostResponse) (*Result, error) {
	r := &Result{
		Retried:      resp.Retried,
		Fallback:     resp.Fallback,
		Message:      resp.Message,
		Sources:      resp.Sources,
		CitedSources: resp.CitedSources,
	}
	if resp.Fallback {
		return r, nil
	}
	var err error
	if r.Answer, err = Markdown(resp.Answer); err != nil {
		return nil, err
	}
	return r, nil
}

func (p Page) Render(w io.Writer) error {
	if p.SourceUnits == nil {
		p.SourceUnits = SourceUnits
	}
	if err := templates.ExecuteTemplate(w, "page.html", p); err != nil {
		return fmt.Errorf("render: failed to execute page template: %w", err)
	}
	return nil
}
