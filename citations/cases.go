package citations

import (
	"fmt"
	"regexp"
	"strings"
)

var caseHeadingPattern = regexp.MustCompile(`(###\s*\d+\.\s+)([^\n]+)`)

// InsertCaseLinks links the titles of numbered case headings ("### 1. title")
// to the case announcements. The n-th heading gets the n-th URL.
func InsertCaseLinks(text string, urls []string) string {
	if len(urls) == 0 {
		return text
	}
	matches := caseHeadingPattern.FindAllStringSubmatchIndex(text, -1)
	var sb strings.Builder
	var last int
	for i, m := range matches {
		if i >= len(urls) {
			break
		}
		title := strings.TrimSpace(text[m[4]:m[5]])
		if strings.HasPrefix(title, "[") && strings.Contains(title, "](") {
			continue
		}
		sb.WriteString(text[last:m[0]])
		sb.WriteString(text[m[2]:m[3]])
		fmt.Fprintf(&sb, "[%s](%s)", title, urls[i])
		last = m[1]
	}
	sb.WriteString(text[last:])
	return sb.String()
}
