package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts configures what is sent to the model alongside the user's query.
type Prompts struct {
	SystemInstruction   string   `yaml:"system_instruction"`
	LawLinksInstruction string   `yaml:"law_links_instruction"`
	QuickQueries        []string `yaml:"quick_queries"`
}

// Load reads prompts from a YAML file. An empty filename loads the built-in
// prompts. Fields missing from the file keep their built-in values.
func Load(filename string) (p Prompts, err error) {
	if err = yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return p, fmt.Errorf("prompts: failed to parse built-in prompts: %w", err)
	}
	if filename == "" {
		return p, nil
	}
	contents, err := os.ReadFile(filename)
	if err != nil {
		return p, fmt.Errorf("prompts: failed to read file %s: %w", filename, err)
	}
	if err = yaml.Unmarshal(contents, &p); err != nil {
		return p, fmt.Errorf("prompts: failed to parse file %s: %w", filename, err)
	}
	if strings.TrimSpace(p.SystemInstruction) == "" {
		return p, fmt.Errorf("prompts: %s: system_instruction is empty", filename)
	}
	if _, err = p.lawLinks(map[string]string{"銀行法第1條": "https://example.com"}); err != nil {
		return p, fmt.Errorf("prompts: %s: invalid law_links_instruction: %w", filename, err)
	}
	return p, nil
}

// Instruction returns the system instruction. When lawLinks is not empty, the
// law links instruction listing them is appended, so that the model writes the
// links itself.
func (p Prompts) Instruction(lawLinks map[string]string) (string, error) {
	if len(lawLinks) == 0 || p.LawLinksInstruction == "" {
		return p.SystemInstruction, nil
	}
	appendix, err := p.lawLinks(lawLinks)
	if err != nil {
		return "", err
	}
	return p.SystemInstruction + "\n" + appendix, nil
}

func (p Prompts) lawLinks(lawLinks map[string]string) (string, error) {
	table, err := lawLinksJSON(lawLinks)
	if err != nil {
		return "", err
	}
	tmpl := prompts.NewPromptTemplate(p.LawLinksInstruction, []string{"law_links_json"})
	s, err := tmpl.Format(map[string]any{
		"law_links_json": table,
	})
	if err != nil {
		return "", fmt.Errorf("prompts: failed to format law links instruction: %w", err)
	}
	return s, nil
}

// lawLinksJSON formats the links as indented JSON, leaving non-ASCII text and
// URL query strings readable.
func lawLinksJSON(lawLinks map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lawLinks); err != nil {
		return "", fmt.Errorf("prompts: failed to encode law links: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
