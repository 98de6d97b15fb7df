package search

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultStoreID = "fileSearchStores/fscpenaltiesplaintext-4f87t5uexgui"
)

func NewGemini(ctx context.Context, apiKey, storeID, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("search: gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("search: failed to create genai client: %w", err)
	}
	if storeID == "" {
		storeID = DefaultStoreID
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{
		models:  client.Models,
		storeID: storeID,
		model:   model,
	}, nil
}

// Gemini answers queries with a Gemini model grounded on a File Search Store.
type Gemini struct {
	models  *genai.Models
	storeID string
	model   string
}

func (g *Gemini) Search(ctx context.Context, req Request) (result Result, err error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Query), g.config(req.SystemInstruction))
	if err != nil {
		return result, fmt.Errorf("search: generate content failed: %w", err)
	}
	result.Text = resp.Text()
	result.Sources = ExtractSources(resp)
	return result, nil
}

func (g *Gemini) config(systemInstruction string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{
				FileSearch: &genai.FileSearch{
					FileSearchStoreNames: []string{g.storeID},
				},
			},
		},
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: MaxOutputTokens(g.model),
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return config
}

// MaxOutputTokens returns the output token budget for the model. Pro models
// write longer answers.
func MaxOutputTokens(model string) int32 {
	if strings.Contains(strings.ToLower(model), "pro") {
		return 8192
	}
	return 4096
}
