package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	FileMappingName   = "file_mapping.json"
	GeminiMappingName = "gemini_id_mapping.json"
)

// NewFile creates a catalog backed by the JSON mapping files in dir. The files
// are re-read whenever they change on disk, so a catalog refresh does not need
// a restart. Missing files give an empty catalog.
func NewFile(dir string) *File {
	return &File{
		casesPath:  filepath.Join(dir, FileMappingName),
		geminiPath: filepath.Join(dir, GeminiMappingName),
	}
}

type File struct {
	casesPath  string
	geminiPath string

	m         sync.Mutex
	cases     map[string]Case
	geminiIDs map[string]string
	casesMod  time.Time
	geminiMod time.Time
}

func (f *File) Resolve(ctx context.Context, name string) (c Case, ok bool, err error) {
	cases, geminiIDs, err := f.load()
	if err != nil {
		return c, false, err
	}
	fileID, ok := geminiIDs[GeminiFileName(name)]
	if !ok {
		if fileID, ok = FileIDFromName(name); !ok {
			return c, false, nil
		}
	}
	c, ok = cases[fileID]
	return c, ok, nil
}

func (f *File) LawLinks(ctx context.Context) (map[string]string, error) {
	cases, _, err := f.load()
	if err != nil {
		return nil, err
	}
	return FullLawLinks(cases), nil
}

// Cases returns every case in the catalog, keyed by file ID.
func (f *File) Cases() (map[string]Case, error) {
	cases, _, err := f.load()
	return cases, err
}

// GeminiIDs returns the mapping of search index document names to file IDs.
func (f *File) GeminiIDs() (map[string]string, error) {
	_, geminiIDs, err := f.load()
	return geminiIDs, err
}

func (f *File) load() (cases map[string]Case, geminiIDs map[string]string, err error) {
	f.m.Lock()
	defer f.m.Unlock()
	changed, err := reloadIfChanged(f.casesPath, &f.casesMod, &f.cases)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		for id, c := range f.cases {
			c.FileID = id
			f.cases[id] = c
		}
	}
	if _, err = reloadIfChanged(f.geminiPath, &f.geminiMod, &f.geminiIDs); err != nil {
		return nil, nil, err
	}
	return f.cases, f.geminiIDs, nil
}

func reloadIfChanged[T any](path string, lastMod *time.Time, dst *map[string]T) (changed bool, err error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		*dst = map[string]T{}
		*lastMod = time.Time{}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("cases: failed to stat %s: %w", path, err)
	}
	if *dst != nil && fi.ModTime().Equal(*lastMod) {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("cases: failed to read %s: %w", path, err)
	}
	m := map[string]T{}
	if err = json.Unmarshal(data, &m); err != nil {
		return false, fmt.Errorf("cases: failed to parse %s: %w", path, err)
	}
	*dst = m
	*lastMod = fi.ModTime()
	return true, nil
}
