package search

import (
	"strconv"
	"strings"

	"google.golang.org/genai"
)

const unknownTitle = "未知文件"

// snippetKeyLength is the number of runes of a snippet used to detect
// duplicate excerpts.
const snippetKeyLength = 100

// ExtractSources returns the excerpts cited by the first candidate.
//
// Excerpts referenced by grounding supports are preferred, since they are the
// ones the answer actually relies on. If there are none, every retrieved chunk
// is used.
func ExtractSources(resp *genai.GenerateContentResponse) (sources []Source) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	md := resp.Candidates[0].GroundingMetadata
	if md == nil {
		return nil
	}
	seen := make(map[string]struct{})
	add := func(chunk *genai.GroundingChunk) {
		if chunk == nil || chunk.RetrievedContext == nil {
			return
		}
		s := sourceFromContext(chunk.RetrievedContext)
		key := snippetKey(s.Snippet, len(sources))
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		sources = append(sources, s)
	}

	for _, support := range md.GroundingSupports {
		if support == nil {
			continue
		}
		for _, idx := range support.GroundingChunkIndices {
			if idx < 0 || int(idx) >= len(md.GroundingChunks) {
				continue
			}
			add(md.GroundingChunks[idx])
		}
	}
	if len(sources) > 0 {
		return sources
	}
	for _, chunk := range md.GroundingChunks {
		add(chunk)
	}
	return sources
}

func sourceFromContext(rc *genai.GroundingChunkRetrievedContext) Source {
	s := Source{
		Title:   unknownTitle,
		URI:     rc.URI,
		Snippet: rc.Text,
	}
	switch {
	case rc.Title != "":
		s.Title = rc.Title
	case rc.URI != "":
		s.Title = rc.URI[strings.LastIndex(rc.URI, "/")+1:]
	}
	return s
}

func snippetKey(snippet string, position int) string {
	if snippet == "" {
		return "#" + strconv.Itoa(position)
	}
	r := []rune(snippet)
	if len(r) > snippetKeyLength {
		r = r[:snippetKeyLength]
	}
	return string(r)
}
