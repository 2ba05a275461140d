// Package catalog loads the fixed service table offered to buyers.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"oracle-bot/internal/domain/model"
	"oracle-bot/internal/domain/ports/repository"
)

var _ repository.ServiceCatalog = (*Catalog)(nil)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Catalog is immutable after construction.
type Catalog struct {
	byCode  map[string]model.ServiceDescriptor
	ordered []model.ServiceDescriptor
}

type file struct {
	Services []model.ServiceDescriptor `yaml:"services" validate:"required,min=1,dive"`
}

// Load reads the catalog from path, or the embedded default if path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML catalog document.
func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(f.Services)
}

// New validates services and builds the lookup table.
func New(services []model.ServiceDescriptor) (*Catalog, error) {
	if len(services) == 0 {
		return nil, errors.New("catalog: no services defined")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	c := &Catalog{
		byCode:  make(map[string]model.ServiceDescriptor, len(services)),
		ordered: make([]model.ServiceDescriptor, 0, len(services)),
	}
	for i, s := range services {
		if err := v.Struct(s); err != nil {
			return nil, fmt.Errorf("catalog: service #%d (%q): %w", i, s.Code, err)
		}
		if _, dup := c.byCode[s.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate service code %q", s.Code)
		}
		c.byCode[s.Code] = s
		c.ordered = append(c.ordered, s)
	}
	return c, nil
}

func (c *Catalog) Lookup(code string) (model.ServiceDescriptor, bool) {
	s, ok := c.byCode[code]
	return s, ok
}

// List returns services in file order. The slice is a copy.
func (c *Catalog) List() []model.ServiceDescriptor {
	out := make([]model.ServiceDescriptor, len(c.ordered))
	copy(out, c.ordered)
	return out
}
