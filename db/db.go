package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/a-h/penaltysearch/cases"
	"github.com/rqlite/gorqlite"
)

func New(conn *gorqlite.Connection) *Queries {
	return &Queries{
		conn: conn,
	}
}

// Queries stores the case catalog in rqlite. It implements cases.Catalog.
type Queries struct {
	conn *gorqlite.Connection
}

var _ cases.Catalog = (*Queries)(nil)

func casePutStatement(c cases.Case) (stmt gorqlite.ParameterizedStatement, err error) {
	lawLinks := c.LawLinks
	if lawLinks == nil {
		lawLinks = map[string]string{}
	}
	lawLinksJSON, err := json.Marshal(lawLinks)
	if err != nil {
		return stmt, fmt.Errorf("failed to marshal law links: %w", err)
	}
	return gorqlite.ParameterizedStatement{
		Query: `insert into penalty_case (file_id, display_name, date, original_url, law_links)
values (?, ?, ?, ?, ?)
on conflict(file_id) do update
set
    display_name = excluded.display_name,
    date = excluded.date,
    original_url = excluded.original_url,
    law_links = excluded.law_links
`,
		Arguments: []any{c.FileID, c.DisplayName, c.Date, c.OriginalURL, string(lawLinksJSON)},
	}, nil
}

func geminiFilePutStatement(geminiID, fileID string) gorqlite.ParameterizedStatement {
	return gorqlite.ParameterizedStatement{
		Query:     `insert or replace into gemini_file (gemini_id, file_id) values (?, ?)`,
		Arguments: []any{cases.GeminiFileName(geminiID), fileID},
	}
}

func (q *Queries) CasePut(ctx context.Context, c cases.Case) (err error) {
	if c.FileID == "" {
		return fmt.Errorf("db: case file ID is required")
	}
	stmt, err := casePutStatement(c)
	if err != nil {
		return err
	}
	_, err = q.conn.WriteOneParameterizedContext(ctx, stmt)
	return err
}

type CatalogPutArgs struct {
	// Cases keyed by file ID.
	Cases map[string]cases.Case
	// GeminiIDs maps search index document names to file IDs.
	GeminiIDs map[string]string
}

// CatalogPut writes the cases and document name mappings in a single request.
func (q *Queries) CatalogPut(ctx context.Context, args CatalogPutArgs) (err error) {
	statements := make([]gorqlite.ParameterizedStatement, 0, len(args.Cases)+len(args.GeminiIDs))
	for fileID, c := range args.Cases {
		c.FileID = fileID
		stmt, err := casePutStatement(c)
		if err != nil {
			return fmt.Errorf("db: case %q: %w", fileID, err)
		}
		statements = append(statements, stmt)
	}
	for geminiID, fileID := range args.GeminiIDs {
		statements = append(statements, geminiFilePutStatement(geminiID, fileID))
	}
	if len(statements) == 0 {
		return nil
	}
	if _, err = q.conn.WriteParameterizedContext(ctx, statements); err != nil {
		return err
	}
	return nil
}

func (q *Queries) CaseDelete(ctx context.Context, fileID string) (err error) {
	statements := []gorqlite.ParameterizedStatement{
		{
			Query:     `delete from gemini_file where file_id = ?`,
			Arguments: []any{fileID},
		},
		{
			Query:     `delete from penalty_case where file_id = ?`,
			Arguments: []any{fileID},
		},
	}
	if _, err = q.conn.WriteParameterizedContext(ctx, statements); err != nil {
		return err
	}
	return nil
}

func (q *Queries) CaseGet(ctx context.Context, fileID string) (c cases.Case, ok bool, err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query:     `select file_id, display_name, date, original_url, law_links from penalty_case where file_id = ?`,
		Arguments: []any{fileID},
	}
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return c, false, err
	}
	if !result.Next() {
		return c, false, nil
	}
	c, err = scanCase(&result)
	if err != nil {
		return c, false, err
	}
	return c, true, nil
}

func scanCase(result *gorqlite.QueryResult) (c cases.Case, err error) {
	var lawLinksJSON string
	if err = result.Scan(&c.FileID, &c.DisplayName, &c.Date, &c.OriginalURL, &lawLinksJSON); err != nil {
		return c, err
	}
	if err = json.Unmarshal([]byte(lawLinksJSON), &c.LawLinks); err != nil {
		return c, fmt.Errorf("failed to unmarshal law links of %q: %w", c.FileID, err)
	}
	return c, nil
}

func (q *Queries) GeminiFileGet(ctx context.Context, geminiID string) (fileID string, ok bool, err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query:     `select file_id from gemini_file where gemini_id = ?`,
		Arguments: []any{cases.GeminiFileName(geminiID)},
	}
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return "", false, err
	}
	if !result.Next() {
		return "", false, nil
	}
	if err = result.Scan(&fileID); err != nil {
		return "", false, err
	}
	return fileID, true, nil
}

// Resolve maps a cited document name to its case, using the document name
// mapping first and the file ID embedded in the name second.
func (q *Queries) Resolve(ctx context.Context, name string) (c cases.Case, ok bool, err error) {
	fileID, ok, err := q.GeminiFileGet(ctx, name)
	if err != nil {
		return c, false, fmt.Errorf("db: failed to get document mapping: %w", err)
	}
	if !ok {
		if fileID, ok = cases.FileIDFromName(name); !ok {
			return c, false, nil
		}
	}
	c, ok, err = q.CaseGet(ctx, fileID)
	if err != nil {
		return c, false, fmt.Errorf("db: failed to get case: %w", err)
	}
	return c, ok, nil
}

// LawLinks returns the full law article links of every case. Where cases
// disagree on a link, the newest case wins.
func (q *Queries) LawLinks(ctx context.Context) (links map[string]string, err error) {
	stmt := gorqlite.ParameterizedStatement{
		Query: `select file_id, law_links from penalty_case order by date desc, file_id`,
	}
	result, err := q.conn.QueryOneParameterizedContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	links = make(map[string]string)
	for result.Next() {
		var fileID, lawLinksJSON string
		if err = result.Scan(&fileID, &lawLinksJSON); err != nil {
			return nil, err
		}
		var caseLinks map[string]string
		if err = json.Unmarshal([]byte(lawLinksJSON), &caseLinks); err != nil {
			return nil, fmt.Errorf("db: failed to unmarshal law links of %q: %w", fileID, err)
		}
		for law, url := range caseLinks {
			if cases.IsAbbreviatedLaw(law) {
				continue
			}
			if _, exists := links[law]; !exists {
				links[law] = url
			}
		}
	}
	return links, nil
}
