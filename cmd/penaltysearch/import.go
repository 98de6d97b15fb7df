package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/a-h/penaltysearch/cases"
	"github.com/a-h/penaltysearch/db"
	"github.com/pluja/pocketbase"
)

type ImportCommand struct {
	RqliteURL     string `help:"The URL of the rqlite server to import into." env:"RQLITE_URL" default:"http://localhost:4001"`
	DataDir       string `help:"The directory containing file_mapping.json and gemini_id_mapping.json." env:"DATA_DIR" default:"data"`
	PocketbaseURL string `help:"Import from a Pocketbase server instead of the data directory." env:"POCKETBASE_URL" default:""`
	Collection    string `help:"The name of the Pocketbase collection to export from." env:"COLLECTION" default:"penalty_cases"`
	Expand        string `help:"The relation fields to expand, e.g. laws." env:"EXPAND" default:"laws"`
	DryRun        bool   `help:"Do not actually import the cases." env:"DRY_RUN" default:"false"`
	LogLevel      string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ImportCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	args, err := c.read(ctx, log)
	if err != nil {
		return err
	}
	log.Info("read case catalog", slog.Int("cases", len(args.Cases)), slog.Int("documents", len(args.GeminiIDs)))
	if c.DryRun {
		log.Info("skipping import in dry run mode")
		return nil
	}

	conn, err := openDatabase(log, c.RqliteURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err = db.New(conn).CatalogPut(ctx, args); err != nil {
		return fmt.Errorf("failed to import case catalog: %w", err)
	}
	log.Info("case catalog imported")
	return nil
}

func (c ImportCommand) read(ctx context.Context, log *slog.Logger) (args db.CatalogPutArgs, err error) {
	args.Cases = map[string]cases.Case{}
	args.GeminiIDs = map[string]string{}
	if c.PocketbaseURL == "" {
		f := cases.NewFile(c.DataDir)
		if args.Cases, err = f.Cases(); err != nil {
			return args, fmt.Errorf("failed to read cases: %w", err)
		}
		if args.GeminiIDs, err = f.GeminiIDs(); err != nil {
			return args, fmt.Errorf("failed to read document mapping: %w", err)
		}
		return args, nil
	}

	pbe := NewPocketbaseExporter(pocketbase.NewClient(c.PocketbaseURL), c.Collection, c.Expand)
	for ec := range pbe.Export(ctx) {
		if ec.Case.FileID == "" {
			log.Warn("skipping record without a file ID", slog.String("id", ec.ID))
			continue
		}
		log.Debug("exporting case", slog.String("fileID", ec.Case.FileID))
		args.Cases[ec.Case.FileID] = ec.Case
		if ec.GeminiID != "" {
			args.GeminiIDs[ec.GeminiID] = ec.Case.FileID
		}
	}
	if pbe.Error != nil {
		return args, fmt.Errorf("failed to export from Pocketbase: %w", pbe.Error)
	}
	return args, ctx.Err()
}

type lister interface {
	List(collection string, params pocketbase.ParamsList) (pocketbase.ResponseList[map[string]any], error)
}

func NewPocketbaseExporter(client lister, collection, expand string) *PocketbaseExporter {
	return &PocketbaseExporter{
		client:     client,
		collection: collection,
		expand:     expand,
		PageSize:   100,
		Error:      nil,
	}
}

// PocketbaseExporter reads penalty case records. Law links are either a JSON
// field named law_links, or a relation whose records have name and url fields.
type PocketbaseExporter struct {
	client     lister
	collection string
	expand     string
	PageSize   int
	Error      error
}

type ExportedCase struct {
	ID       string
	GeminiID string
	Case     cases.Case
}

func (p *PocketbaseExporter) Export(ctx context.Context) iter.Seq[ExportedCase] {
	var page int
	return func(yield func(ExportedCase) bool) {
		for {
			if ctx.Err() != nil {
				return
			}
			if p.Error != nil {
				return
			}
			page++
			response, err := p.client.List(p.collection, pocketbase.ParamsList{
				Page:   page,
				Size:   p.PageSize,
				Sort:   "-date",
				Expand: p.expand,
			})
			if err != nil {
				p.Error = err
				return
			}
			if len(response.Items) == 0 {
				return
			}
			for _, item := range response.Items {
				if !yield(createCase(item)) {
					return
				}
			}
			if response.TotalPages > 0 && page >= response.TotalPages {
				return
			}
		}
	}
}

func useItemOrDefault(item map[string]any, keys []string, defaultValue string) string {
	for _, key := range keys {
		if value, ok := item[key].(string); ok && value != "" {
			return value
		}
	}
	return defaultValue
}

func createCase(item map[string]any) (ec ExportedCase) {
	ec.ID = useItemOrDefault(item, []string{"id"}, "")
	recursivelyApplyExpandedFields(item)
	ec.GeminiID = useItemOrDefault(item, []string{"gemini_id"}, "")
	ec.Case = cases.Case{
		FileID:      useItemOrDefault(item, []string{"file_id"}, ""),
		DisplayName: useItemOrDefault(item, []string{"display_name", "title", "name"}, ""),
		Date:        useItemOrDefault(item, []string{"date"}, ""),
		OriginalURL: useItemOrDefault(item, []string{"original_url", "url"}, ""),
		LawLinks:    map[string]string{},
	}
	if ec.Case.FileID == "" {
		if fileID, ok := cases.FileIDFromName(useItemOrDefault(item, []string{"filename"}, "")); ok {
			ec.Case.FileID = fileID
		}
	}
	if len(ec.Case.Date) > 10 {
		// Pocketbase date fields are "2006-01-02 15:04:05.000Z".
		ec.Case.Date = ec.Case.Date[:10]
	}
	if laws, ok := item["law_links"].(map[string]any); ok {
		for law, url := range laws {
			if url, ok := url.(string); ok {
				ec.Case.LawLinks[law] = url
			}
		}
	}
	if laws, ok := item["laws"].([]any); ok {
		for _, law := range laws {
			law, ok := law.(map[string]any)
			if !ok {
				continue
			}
			name, url := useItemOrDefault(law, []string{"name"}, ""), useItemOrDefault(law, []string{"url"}, "")
			if name != "" && url != "" {
				ec.Case.LawLinks[name] = url
			}
		}
	}
	return ec
}

func applyExpandedFields(data map[string]any) (changed bool) {
	for key, value := range data {
		if key == "expand" {
			expandMap, ok := value.(map[string]any)
			if !ok {
				continue
			}

			// Check parent keys for matches in expand.
			for parentKey := range data {
				if parentKey == "expand" {
					continue
				}
				if expandedValue, found := expandMap[parentKey]; found {
					data[parentKey] = expandedValue
					changed = true
				}
			}

			// Remove expand key.
			delete(data, "expand")
			changed = true
		} else if nestedMap, ok := value.(map[string]any); ok {
			// Recurse into nested maps.
			if applyExpandedFields(nestedMap) {
				changed = true
			}
		} else if nestedSlice, ok := value.([]any); ok {
			// Recurse into slices.
			for _, item := range nestedSlice {
				if itemMap, isMap := item.(map[string]any); isMap {
					if applyExpandedFields(itemMap) {
						changed = true
					}
				}
			}
		}
	}

	return changed
}

func recursivelyApplyExpandedFields(data map[string]any) {
	for {
		if changesMade := applyExpandedFields(data); !changesMade {
			return
		}
	}
}
