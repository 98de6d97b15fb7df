package models

import (
	"strings"
	"testing"
)

func TestQueryPostRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     QueryPostRequest
		wantErr bool
	}{
		{
			name: "a question is valid",
			req:  QueryPostRequest{Text: "2024年有哪些銀行因為洗錢防制被裁罰？"},
		},
		{
			name:    "an empty question is invalid",
			req:     QueryPostRequest{Text: ""},
			wantErr: true,
		},
		{
			name:    "a blank question is invalid",
			req:     QueryPostRequest{Text: "  \n "},
			wantErr: true,
		},
		{
			name: "questions are measured in characters, not bytes",
			req:  QueryPostRequest{Text: strings.Repeat("裁", MaxQueryLength)},
		},
		{
			name:    "long questions are invalid",
			req:     QueryPostRequest{Text: strings.Repeat("裁", MaxQueryLength+1)},
			wantErr: true,
		},
		{
			name: "a complete date range is valid",
			req: QueryPostRequest{Text: "q", Filters: &QueryFilters{
				StartDate: "2024-01-01",
				EndDate:   "2024-12-31",
			}},
		},
		{
			name: "half a date range is invalid",
			req: QueryPostRequest{Text: "q", Filters: &QueryFilters{
				StartDate: "2024-01-01",
			}},
			wantErr: true,
		},
		{
			name: "reversed date ranges are invalid",
			req: QueryPostRequest{Text: "q", Filters: &QueryFilters{
				StartDate: "2024-12-31",
				EndDate:   "2024-01-01",
			}},
			wantErr: true,
		},
		{
			name: "badly formatted dates are invalid",
			req: QueryPostRequest{Text: "q", Filters: &QueryFilters{
				StartDate: "2024/01/01",
				EndDate:   "2024/12/31",
			}},
			wantErr: true,
		},
		{
			name: "negative penalties are invalid",
			req: QueryPostRequest{Text: "q", Filters: &QueryFilters{
				MinPenalty: -1,
			}},
			wantErr: true,
		},
		{
			name: "empty source units are invalid",
			req: QueryPostRequest{Text: "q", Filters: &QueryFilters{
				SourceUnits: []string{"銀行局", ""},
			}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
