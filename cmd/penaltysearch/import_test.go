package main

import (
	"context"
	"errors"
	"testing"

	"github.com/a-h/penaltysearch/cases"
	"github.com/google/go-cmp/cmp"
	"github.com/pluja/pocketbase"
)

func TestCreateCase(t *testing.T) {
	tests := []struct {
		name     string
		item     map[string]any
		expected ExportedCase
	}{
		{
			name: "law links can be a JSON field",
			item: map[string]any{
				"id":           "rec1",
				"file_id":      "fsc_pen_20240101_0001",
				"gemini_id":    "files/4ax547mbfiot",
				"display_name": "甲銀行違反洗錢防制法",
				"date":         "2024-01-01 00:00:00.000Z",
				"original_url": "https://www.fsc.gov.tw/1",
				"law_links": map[string]any{
					"洗錢防制法第7條": "https://law.example/aml-7",
					"invalid":  42,
				},
			},
			expected: ExportedCase{
				ID:       "rec1",
				GeminiID: "files/4ax547mbfiot",
				Case: cases.Case{
					FileID:      "fsc_pen_20240101_0001",
					DisplayName: "甲銀行違反洗錢防制法",
					Date:        "2024-01-01",
					OriginalURL: "https://www.fsc.gov.tw/1",
					LawLinks:    map[string]string{"洗錢防制法第7條": "https://law.example/aml-7"},
				},
			},
		},
		{
			name: "law links can be an expanded relation",
			item: map[string]any{
				"id":       "rec2",
				"filename": "fsc_pen_20230101_0002.md",
				"title":    "乙證券",
				"laws":     []any{"law1", "law2"},
				"expand": map[string]any{
					"laws": []any{
						map[string]any{"id": "law1", "name": "證券交易法第66條", "url": "https://law.example/sea-66"},
						map[string]any{"id": "law2", "name": "證券交易法第178條"},
					},
				},
			},
			expected: ExportedCase{
				ID: "rec2",
				Case: cases.Case{
					FileID:      "fsc_pen_20230101_0002",
					DisplayName: "乙證券",
					LawLinks:    map[string]string{"證券交易法第66條": "https://law.example/sea-66"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, createCase(tt.item)); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestApplyExpandedFields(t *testing.T) {
	item := map[string]any{
		"unit": "u1",
		"expand": map[string]any{
			"unit": map[string]any{
				"name": "銀行局",
				"head": "h1",
				"expand": map[string]any{
					"head": map[string]any{"name": "局長"},
				},
			},
		},
	}
	recursivelyApplyExpandedFields(item)
	expected := map[string]any{
		"unit": map[string]any{
			"name": "銀行局",
			"head": map[string]any{"name": "局長"},
		},
	}
	if diff := cmp.Diff(expected, item); diff != "" {
		t.Error(diff)
	}
}

type fakeLister struct {
	pages    [][]map[string]any
	err      error
	requests []pocketbase.ParamsList
}

func (f *fakeLister) List(collection string, params pocketbase.ParamsList) (resp pocketbase.ResponseList[map[string]any], err error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return resp, f.err
	}
	if params.Page > len(f.pages) {
		return resp, nil
	}
	resp.Items = f.pages[params.Page-1]
	return resp, nil
}

func TestPocketbaseExporter(t *testing.T) {
	t.Run("All pages are exported", func(t *testing.T) {
		fl := &fakeLister{
			pages: [][]map[string]any{
				{{"id": "a", "file_id": "fsc_pen_20240101_0001"}, {"id": "b", "file_id": "fsc_pen_20240101_0002"}},
				{{"id": "c", "file_id": "fsc_pen_20230101_0001"}},
			},
		}
		pbe := NewPocketbaseExporter(fl, "penalty_cases", "laws")
		var ids []string
		for ec := range pbe.Export(context.Background()) {
			ids = append(ids, ec.ID)
		}
		if pbe.Error != nil {
			t.Fatalf("unexpected error: %v", pbe.Error)
		}
		if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
			t.Error(diff)
		}
		if diff := cmp.Diff(3, len(fl.requests)); diff != "" {
			t.Errorf("unexpected number of requests: %v", diff)
		}
		if diff := cmp.Diff("laws", fl.requests[0].Expand); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("Errors stop the export", func(t *testing.T) {
		fl := &fakeLister{err: errors.New("connection refused")}
		pbe := NewPocketbaseExporter(fl, "penalty_cases", "")
		for range pbe.Export(context.Background()) {
			t.Error("unexpected case")
		}
		if pbe.Error == nil {
			t.Error("expected an error")
		}
	})
	t.Run("Stopping early does not request more pages", func(t *testing.T) {
		fl := &fakeLister{
			pages: [][]map[string]any{
				{{"id": "a"}, {"id": "b"}},
				{{"id": "c"}},
			},
		}
		pbe := NewPocketbaseExporter(fl, "penalty_cases", "")
		for range pbe.Export(context.Background()) {
			break
		}
		if diff := cmp.Diff(1, len(fl.requests)); diff != "" {
			t.Error(diff)
		}
	})
}
