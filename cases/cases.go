// Package cases holds the catalog of penalty cases behind the search index.
//
// The catalog is produced by the companion ingestion project. It maps the
// documents in the search index back to case metadata: a display name, the
// announcement date, the original announcement URL and the law articles cited
// by the case, each with a link to the article text.
package cases

import (
	"cmp"
	"context"
	"maps"
	"regexp"
	"slices"
	"strings"
)

type Case struct {
	FileID      string            `json:"-"`
	DisplayName string            `json:"display_name"`
	Date        string            `json:"date"`
	OriginalURL string            `json:"original_url"`
	LawLinks    map[string]string `json:"law_links"`
}

type Catalog interface {
	// Resolve maps the name of a cited document to its case.
	Resolve(ctx context.Context, name string) (c Case, ok bool, err error)
	// LawLinks returns every full law article link known to the catalog.
	LawLinks(ctx context.Context) (map[string]string, error)
}

var fileIDPattern = regexp.MustCompile(`^(fsc_pen_\d{8}_\d{4})`)

// FileIDFromName extracts a file ID from document names such as
// "files/fsc_pen_20240101_0001.md".
func FileIDFromName(name string) (fileID string, ok bool) {
	name = strings.ReplaceAll(name, "files/", "")
	name = strings.ReplaceAll(name, ".md", "")
	m := fileIDPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// GeminiFileName normalises a document name, which may be a bare internal ID
// such as "4ax547mbfiot", to the "files/<id>" form used as a mapping key.
func GeminiFileName(name string) string {
	return "files/" + strings.ReplaceAll(name, "files/", "")
}

// IsAbbreviatedLaw reports whether the law key omits the law name, e.g. "第51條".
func IsAbbreviatedLaw(law string) bool {
	return strings.HasPrefix(law, "第")
}

// FullLawLinks returns the links whose keys include the law name. Where cases
// disagree on a link, the newest case wins.
func FullLawLinks(cases map[string]Case) map[string]string {
	ids := slices.Collect(maps.Keys(cases))
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(cases[b].Date, cases[a].Date); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	links := make(map[string]string)
	for _, id := range ids {
		for law, url := range cases[id].LawLinks {
			if IsAbbreviatedLaw(law) {
				continue
			}
			if _, exists := links[law]; !exists {
				links[law] = url
			}
		}
	}
	return links
}
