package tools

import (
	"fmt"
	"os"

	"github.com/llmhub/llmhub/internal/domain"
	"gopkg.in/yaml.v3"
)

// Tool names the bridge always exposes.
const (
	ToolInference  = "inference"
	ToolListModels = "list_models"
)

// Catalog is the set of tools the bridge advertises. It is loaded
// from a YAML file at startup; when no file is present the built-in
// defaults apply.
type Catalog struct {
	Tools []domain.ToolSpec `yaml:"tools"`
}

// Load reads a catalog file. A missing file is not an error; the
// defaults are returned instead.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("reading tool catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing tool catalog: %w", err)
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (c *Catalog) validate() error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("tool catalog is empty")
	}
	seen := make(map[string]bool, len(c.Tools))
	for _, tool := range c.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool catalog entry without a name")
		}
		if seen[tool.Name] {
			return fmt.Errorf("duplicate tool %q in catalog", tool.Name)
		}
		seen[tool.Name] = true
	}
	return nil
}

// Get returns the spec for a tool, or nil when the catalog does not
// contain it.
func (c *Catalog) Get(name string) *domain.ToolSpec {
	for i := range c.Tools {
		if c.Tools[i].Name == name {
			return &c.Tools[i]
		}
	}
	return nil
}

// Defaults returns the built-in catalog.
func Defaults() *Catalog {
	return &Catalog{
		Tools: []domain.ToolSpec{
			{
				Name:        ToolInference,
				Description: "Run a text completion against the upstream model server",
				Schema: domain.ToolSchema{
					"type": "object",
					"properties": map[string]interface{}{
						"prompt":      map[string]interface{}{"type": "string"},
						"model":       map[string]interface{}{"type": "string"},
						"temperature": map[string]interface{}{"type": "number"},
						"max_tokens":  map[string]interface{}{"type": "integer"},
					},
					"required": []interface{}{"prompt", "model"},
				},
			},
			{
				Name:        ToolListModels,
				Description: "List the models currently loaded by the upstream server",
				Schema: domain.ToolSchema{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
	}
}
