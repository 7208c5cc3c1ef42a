// Package config reads the optional YAML recipe file the CLI accepts via
// --config, naming reusable prefix bundles so a launcher stub and its
// accompanying extra files don't need to be spelled out on every
// invocation.
package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Recipe is one named prefix bundle: a launcher stub applied first,
// followed by zero or more extra files, in order.
type Recipe struct {
	ID    uuid.UUID `yaml:"-"`
	Stub  string    `yaml:"stub"`
	Extra []string  `yaml:"extra"`
}

// Config is the top-level shape of a recipe file.
type Config struct {
	Recipes map[string]*Recipe `yaml:"recipes"`
}

// ReadFile loads and parses the recipe file at path, minting a fresh ID
// for every recipe found so a multi-recipe run can correlate log lines
// back to the recipe that produced them.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	for _, r := range cfg.Recipes {
		r.ID = uuid.New()
	}
	return cfg, nil
}

// GetRecipe looks up a recipe by name.
func (c *Config) GetRecipe(name string) (*Recipe, error) {
	if c.Recipes == nil {
		return nil, fmt.Errorf("no recipes defined in configuration")
	}
	r, ok := c.Recipes[name]
	if !ok {
		return nil, fmt.Errorf("recipe %q not found in configuration", name)
	}
	return r, nil
}

// Paths returns the recipe's stub followed by its extra files, the order
// ApplyPrefixesToZip should apply them in.
func (r *Recipe) Paths() []string {
	return append([]string{r.Stub}, r.Extra...)
}
