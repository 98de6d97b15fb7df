package cases

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFileIDFromName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "bare file IDs are returned", input: "fsc_pen_20240101_0001", expected: "fsc_pen_20240101_0001", ok: true},
		{name: "the files/ prefix and .md suffix are removed", input: "files/fsc_pen_20240101_0001.md", expected: "fsc_pen_20240101_0001", ok: true},
		{name: "trailing text is ignored", input: "fsc_pen_20240101_0001_某銀行.md", expected: "fsc_pen_20240101_0001", ok: true},
		{name: "internal IDs do not match", input: "4ax547mbfiot"},
		{name: "short dates do not match", input: "fsc_pen_202401_0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, ok := FileIDFromName(tt.input)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if actual != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, actual)
			}
		})
	}
}

func TestGeminiFileName(t *testing.T) {
	for _, input := range []string{"4ax547mbfiot", "files/4ax547mbfiot"} {
		if actual := GeminiFileName(input); actual != "files/4ax547mbfiot" {
			t.Errorf("%q: expected files/4ax547mbfiot, got %q", input, actual)
		}
	}
}

func TestFullLawLinks(t *testing.T) {
	cases := map[string]Case{
		"a": {LawLinks: map[string]string{
			"銀行法第45條之1": "https://law.example/bank-45-1",
			"第51條":      "https://law.example/bank-51",
		}},
		"b": {LawLinks: map[string]string{
			"行政罰法第24條": "https://law.example/admin-24",
		}},
	}
	expected := map[string]string{
		"銀行法第45條之1": "https://law.example/bank-45-1",
		"行政罰法第24條":  "https://law.example/admin-24",
	}
	if diff := cmp.Diff(expected, FullLawLinks(cases)); diff != "" {
		t.Error(diff)
	}
}

func TestFullLawLinksPreferNewestCase(t *testing.T) {
	cases := map[string]Case{
		"old": {Date: "2020-01-01", LawLinks: map[string]string{"銀行法第45條之1": "https://law.example/old"}},
		"new": {Date: "2024-01-01", LawLinks: map[string]string{"銀行法第45條之1": "https://law.example/new"}},
		"mid": {Date: "2022-01-01", LawLinks: map[string]string{"銀行法第45條之1": "https://law.example/mid"}},
	}
	for range 10 {
		if diff := cmp.Diff("https://law.example/new", FullLawLinks(cases)["銀行法第45條之1"]); diff != "" {
			t.Fatal(diff)
		}
	}
}

const fileMapping = `{
  "fsc_pen_20240101_0001": {
    "display_name": "某銀行違反洗錢防制法",
    "date": "2024-01-01",
    "original_url": "https://www.fsc.gov.tw/1",
    "law_links": {"洗錢防制法第7條": "https://law.example/aml-7"}
  },
  "fsc_pen_20230505_0002": {
    "display_name": "某證券商違反證券交易法",
    "date": "2023-05-05",
    "original_url": "https://www.fsc.gov.tw/2",
    "law_links": {}
  }
}`

const geminiMapping = `{"files/4ax547mbfiot": "fsc_pen_20230505_0002"}`

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileMappingName), fileMapping)
	writeFile(t, filepath.Join(dir, GeminiMappingName), geminiMapping)
	f := NewFile(dir)

	t.Run("names are resolved through the gemini ID mapping", func(t *testing.T) {
		c, ok, err := f.Resolve(ctx, "4ax547mbfiot")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatal("expected the case to be found")
		}
		if c.FileID != "fsc_pen_20230505_0002" {
			t.Errorf("unexpected file ID %q", c.FileID)
		}
	})
	t.Run("names are resolved from the file name", func(t *testing.T) {
		c, ok, err := f.Resolve(ctx, "fsc_pen_20240101_0001.md")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatal("expected the case to be found")
		}
		expected := Case{
			FileID:      "fsc_pen_20240101_0001",
			DisplayName: "某銀行違反洗錢防制法",
			Date:        "2024-01-01",
			OriginalURL: "https://www.fsc.gov.tw/1",
			LawLinks:    map[string]string{"洗錢防制法第7條": "https://law.example/aml-7"},
		}
		if diff := cmp.Diff(expected, c); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("unknown names are not resolved", func(t *testing.T) {
		_, ok, err := f.Resolve(ctx, "unknown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected no case")
		}
	})
	t.Run("the catalog is reloaded when the file changes", func(t *testing.T) {
		name := filepath.Join(dir, FileMappingName)
		writeFile(t, name, `{"fsc_pen_20250101_0009": {"display_name": "新案件", "date": "2025-01-01"}}`)
		future := time.Now().Add(time.Hour)
		if err := os.Chtimes(name, future, future); err != nil {
			t.Fatalf("failed to change file times: %v", err)
		}
		c, ok, err := f.Resolve(ctx, "fsc_pen_20250101_0009")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok || c.DisplayName != "新案件" {
			t.Errorf("expected the new case, got %#v", c)
		}
	})
}

func TestFileMissing(t *testing.T) {
	f := NewFile(t.TempDir())
	links, err := f.LawLinks(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
	_, ok, err := f.Resolve(context.Background(), "fsc_pen_20240101_0001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no case")
	}
}

func TestFileInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileMappingName), "{")
	if _, err := NewFile(dir).LawLinks(context.Background()); err == nil {
		t.Error("expected an error for an invalid mapping file")
	}
}
