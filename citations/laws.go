package citations

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/a-h/penaltysearch/cases"
)

var (
	lawKeyPattern       = regexp.MustCompile(`^(.+?)(第\d+條(?:之\d+)?)`)
	markdownLinkPattern = regexp.MustCompile(`\[[^\[\]]*\]\([^()]*\)`)
)

// subdivisions matches the optional paragraph, subparagraph and item that may
// follow an article number. Links always point at the article.
const subdivisions = `(?:第\d+項)?(?:第\d+款)?(?:第\d+目)?`

// space matches ASCII whitespace and Unicode spacing such as the ideographic
// space U+3000.
const space = `[\s\p{Zs}]*`

// LinkLaws turns law article citations in markdown text into links.
//
// Keys that include the law name, such as "金融控股公司法第45條", are linked
// wherever the law name and article appear, with or without 《》 around the
// name. Abbreviated keys, such as "第51條", are only linked directly after a
// connector, as in "金融控股公司法第45條及第51條". Connectors stay outside the
// link text. Longer keys are linked first, and text that is already part of a
// link is left alone.
func LinkLaws(text string, links map[string]string) string {
	if len(links) == 0 {
		return text
	}
	laws := sortLongestFirst(links)
	for _, law := range laws {
		if cases.IsAbbreviatedLaw(law) {
			continue
		}
		m := lawKeyPattern.FindStringSubmatch(law)
		if m == nil {
			continue
		}
		name, article := m[1], m[2]
		re := regexp.MustCompile(`([、，及與和以]` + space + `)?(《?` + regexp.QuoteMeta(name) + `》?` + space + regexp.QuoteMeta(article) + subdivisions + `)`)
		text = link(text, re, links[law])
	}
	for _, law := range laws {
		if !cases.IsAbbreviatedLaw(law) {
			continue
		}
		re := regexp.MustCompile(`([、，及與和]` + space + `)(` + regexp.QuoteMeta(law) + subdivisions + `)`)
		text = link(text, re, links[law])
	}
	return text
}

func sortLongestFirst(links map[string]string) []string {
	laws := make([]string, 0, len(links))
	for law := range links {
		laws = append(laws, law)
	}
	slices.SortFunc(laws, func(a, b string) int {
		if n := utf8.RuneCountInString(b) - utf8.RuneCountInString(a); n != 0 {
			return n
		}
		return strings.Compare(a, b)
	})
	return laws
}

// link replaces matches of re with markdown links to url. Submatch 1 is the
// optional connector, submatch 2 the link text.
func link(text string, re *regexp.Regexp, url string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	existing := markdownLinkPattern.FindAllStringIndex(text, -1)
	var sb strings.Builder
	var last int
	for _, m := range matches {
		start, end := m[0], m[1]
		if !linkable(text, existing, start, end) {
			continue
		}
		sb.WriteString(text[last:start])
		if m[2] >= 0 {
			sb.WriteString(text[m[2]:m[3]])
		}
		fmt.Fprintf(&sb, "[%s](%s)", text[m[4]:m[5]], url)
		last = end
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func linkable(text string, existing [][]int, start, end int) bool {
	for _, span := range existing {
		if start < span[1] && end > span[0] {
			return false
		}
	}
	if start > 0 && (text[start-1] == '[' || text[start-1] == '(') {
		return false
	}
	if end < len(text) && (text[end] == ']' || text[end] == ')') {
		return false
	}
	// The match is a prefix of a longer article number, such as 第45條 in 第45條之1.
	return !strings.HasPrefix(text[end:], "之")
}

// collectLawLinks drops keys that begin with a connector word. They come from
// citations split in the wrong place during ingestion. Keys already in dst are
// kept, so when cases are collected newest first the newest link wins.
func collectLawLinks(dst, src map[string]string) {
	for law, url := range src {
		if strings.HasPrefix(law, "與") || strings.HasPrefix(law, "同") || strings.HasPrefix(law, "及") || strings.HasPrefix(law, "或") || strings.HasPrefix(law, "和") {
			continue
		}
		if _, exists := dst[law]; !exists {
			dst[law] = url
		}
	}
}
