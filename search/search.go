// Package search talks to the hosted document search and generation service.
//
// The service is treated as a black box: it accepts a query and a system
// instruction, and returns a generated answer together with the ordered list
// of document excerpts it cited.
package search

import "context"

type Request struct {
	// Query is the full user query, including any filter block.
	Query string
	// SystemInstruction is injected ahead of the query.
	SystemInstruction string
}

// Source is a single cited excerpt.
type Source struct {
	// Title of the source document, usually the uploaded file name.
	Title   string
	URI     string
	Snippet string
}

type Result struct {
	Text    string
	Sources []Source
}

// Grounded reports whether the answer cites at least one retrieved document.
func (r Result) Grounded() bool {
	return len(r.Sources) > 0
}

type Searcher interface {
	Search(ctx context.Context, req Request) (Result, error)
}
