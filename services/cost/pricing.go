package cost

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PricingEntry holds the per-million-token prices for one provider/model pair
type PricingEntry struct {
	Provider         string  `yaml:"provider" json:"provider"`
	Model            string  `yaml:"model" json:"model"`
	InputPerMillion  float64 `yaml:"input_per_million" json:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million" json:"output_per_million"`
}

// PricingTable maps provider+model to prices. It is read-only after load
// and safe for unsynchronized concurrent reads.
type PricingTable struct {
	entries map[string]PricingEntry
}

// pricingFile is the on-disk YAML shape
type pricingFile struct {
	Pricing []PricingEntry `yaml:"pricing"`
}

// defaultEntries are the built-in prices, used when no pricing file is
// configured or as the base the file overrides.
var defaultEntries = []PricingEntry{
	{Provider: "openai", Model: "gpt-4", InputPerMillion: 30.0, OutputPerMillion: 60.0},
	{Provider: "openai", Model: "gpt-4-turbo", InputPerMillion: 10.0, OutputPerMillion: 30.0},
	{Provider: "openai", Model: "gpt-4o", InputPerMillion: 2.5, OutputPerMillion: 10.0},
	{Provider: "openai", Model: "gpt-3.5-turbo", InputPerMillion: 0.5, OutputPerMillion: 1.5},
	{Provider: "anthropic", Model: "claude-3-opus", InputPerMillion: 15.0, OutputPerMillion: 75.0},
	{Provider: "anthropic", Model: "claude-3-sonnet", InputPerMillion: 3.0, OutputPerMillion: 15.0},
	{Provider: "anthropic", Model: "claude-3-haiku", InputPerMillion: 0.25, OutputPerMillion: 1.25},
}

// NewPricingTable builds a table from the built-in defaults
func NewPricingTable() *PricingTable {
	t := &PricingTable{entries: make(map[string]PricingEntry, len(defaultEntries))}
	for _, e := range defaultEntries {
		t.entries[pricingKey(e.Provider, e.Model)] = e
	}
	return t
}

// LoadPricingTable builds a table from the defaults plus overrides read
// from the YAML file at path. Entries in the file replace defaults for the
// same provider/model pair.
func LoadPricingTable(path string) (*PricingTable, error) {
	t := NewPricingTable()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}

	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing pricing file %s: %w", path, err)
	}

	for _, e := range file.Pricing {
		if e.Provider == "" || e.Model == "" {
			return nil, fmt.Errorf("pricing entry missing provider or model in %s", path)
		}
		if e.InputPerMillion < 0 || e.OutputPerMillion < 0 {
			return nil, fmt.Errorf("negative price for %s/%s in %s", e.Provider, e.Model, path)
		}
		t.entries[pricingKey(e.Provider, e.Model)] = e
	}

	return t, nil
}

// Lookup returns the pricing entry for a provider/model pair
func (t *PricingTable) Lookup(provider, model string) (PricingEntry, bool) {
	e, ok := t.entries[pricingKey(provider, model)]
	return e, ok
}

// Len returns the number of entries in the table
func (t *PricingTable) Len() int {
	return len(t.entries)
}

func pricingKey(provider, model string) string {
	return strings.ToLower(provider) + "/" + strings.ToLower(model)
}
