package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a-h/penaltysearch/answer"
	"github.com/a-h/penaltysearch/cases"
	"github.com/a-h/penaltysearch/citations"
	"github.com/a-h/penaltysearch/db"
	"github.com/a-h/penaltysearch/grounding"
	"github.com/a-h/penaltysearch/metrics"
	"github.com/a-h/penaltysearch/prompts"
	"github.com/a-h/penaltysearch/search"
	"github.com/rqlite/gorqlite"
)

// ServiceFlags configure the search service and case catalog, shared by the
// commands that answer questions directly.
type ServiceFlags struct {
	GeminiAPIKey string `help:"The Gemini API key." env:"GEMINI_API_KEY" required:""`
	StoreID      string `help:"The File Search store holding the penalty cases." env:"GEMINI_STORE_ID" default:"${default_store_id}"`
	Model        string `help:"The model used to answer questions." env:"MODEL" default:"${default_model}"`
	LinkMode     string `help:"How law citations are linked: prompt asks the model to add links, regex adds them afterwards." env:"LINK_MODE" default:"prompt" enum:"prompt,regex"`
	DataDir      string `help:"The directory containing file_mapping.json and gemini_id_mapping.json." env:"DATA_DIR" default:"data"`
	RqliteURL    string `help:"The URL of an rqlite server holding the case catalog. Overrides the data directory." env:"RQLITE_URL" default:""`
	PromptsFile  string `help:"A YAML file overriding the built-in prompts." env:"PROMPTS_FILE" default:""`
}

type service struct {
	answer  *answer.Service
	prompts prompts.Prompts
	close   func()
}

func (f ServiceFlags) newService(ctx context.Context, log *slog.Logger, m *metrics.Metrics) (s service, err error) {
	s.close = func() {}
	mode, err := citations.ParseMode(f.LinkMode)
	if err != nil {
		return s, err
	}
	s.prompts, err = prompts.Load(f.PromptsFile)
	if err != nil {
		return s, fmt.Errorf("failed to load prompts: %w", err)
	}

	catalog, closeCatalog, err := f.openCatalog(ctx, log)
	if err != nil {
		return s, err
	}
	s.close = closeCatalog

	log.Info("creating search client", slog.String("model", f.Model), slog.String("store", f.StoreID))
	searcher, err := search.NewGemini(ctx, f.GeminiAPIKey, f.StoreID, f.Model)
	if err != nil {
		s.close()
		return s, fmt.Errorf("failed to create search client: %w", err)
	}

	checker := grounding.New(log, searcher, m)
	linker := citations.New(catalog, mode)
	s.answer = answer.New(log, s.prompts, catalog, checker, linker)
	return s, nil
}

func (f ServiceFlags) openCatalog(ctx context.Context, log *slog.Logger) (catalog cases.Catalog, closer func(), err error) {
	if f.RqliteURL == "" {
		log.Info("loading case catalog", slog.String("dir", f.DataDir))
		fc := cases.NewFile(f.DataDir)
		all, err := fc.Cases()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load case catalog: %w", err)
		}
		if len(all) == 0 {
			log.Warn("case catalog is empty, answers will not be linked", slog.String("dir", f.DataDir))
		}
		return fc, func() {}, nil
	}

	conn, err := openDatabase(log, f.RqliteURL)
	if err != nil {
		return nil, nil, err
	}
	return db.New(conn), conn.Close, nil
}

func openDatabase(log *slog.Logger, rqliteURL string) (conn *gorqlite.Connection, err error) {
	log.Info("connecting to database", slog.String("url", rqliteURL))
	databaseURL, err := db.ParseRqliteURL(rqliteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rqlite URL: %w", err)
	}
	conn, err = gorqlite.Open(databaseURL.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	log.Info("migrating database schema")
	if err = db.Migrate(databaseURL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return conn, nil
}
