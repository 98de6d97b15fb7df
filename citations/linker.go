// Package citations adds hyperlinks to generated answers: law articles link to
// the article text, and case headings link to the original announcement.
package citations

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/a-h/penaltysearch/cases"
	"github.com/a-h/penaltysearch/search"
)

// Mode selects how law article links get into the answer.
type Mode string

const (
	// ModePrompt gives the model the table of law links and asks it to write
	// the links itself.
	ModePrompt Mode = "prompt"
	// ModeRegex links law articles after generation with LinkLaws.
	ModeRegex Mode = "regex"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePrompt, ModeRegex:
		return Mode(s), nil
	case "":
		return ModePrompt, nil
	}
	return "", fmt.Errorf("citations: unknown link mode %q, expected %q or %q", s, ModePrompt, ModeRegex)
}

func New(catalog cases.Catalog, mode Mode) *Linker {
	return &Linker{
		catalog: catalog,
		mode:    mode,
	}
}

type Linker struct {
	catalog cases.Catalog
	mode    Mode
}

func (l *Linker) Mode() Mode {
	return l.mode
}

// CitedCase is a case the answer was grounded on, with the excerpt that was
// retrieved from it.
type CitedCase struct {
	cases.Case
	Snippet string
}

type Linked struct {
	// Text is the answer with links added.
	Text string
	// Cases cited by the answer, newest first. Sources that could not be
	// mapped to a case are not included.
	Cases []CitedCase
}

func (l *Linker) Link(ctx context.Context, result search.Result) (linked Linked, err error) {
	seen := make(map[string]struct{})
	for _, s := range result.Sources {
		c, ok, err := l.catalog.Resolve(ctx, s.Title)
		if err != nil {
			return linked, fmt.Errorf("citations: failed to resolve source %q: %w", s.Title, err)
		}
		if !ok {
			continue
		}
		if _, dup := seen[c.FileID]; dup {
			continue
		}
		seen[c.FileID] = struct{}{}
		linked.Cases = append(linked.Cases, CitedCase{Case: c, Snippet: s.Snippet})
	}
	slices.SortStableFunc(linked.Cases, func(a, b CitedCase) int {
		return cmp.Compare(b.Date, a.Date)
	})

	lawLinks := make(map[string]string)
	var caseURLs []string
	for _, c := range linked.Cases {
		collectLawLinks(lawLinks, c.LawLinks)
		if c.OriginalURL != "" {
			caseURLs = append(caseURLs, c.OriginalURL)
		}
	}

	linked.Text = result.Text
	if l.mode == ModeRegex {
		linked.Text = LinkLaws(linked.Text, lawLinks)
	}
	linked.Text = InsertCaseLinks(linked.Text, caseURLs)
	return linked, nil
}
