// Package catalog reads directory seed files. A catalog is a TOML document
// listing categories and resources:
//
//	[[category]]
//	name = "Food Bank"
//	description = "Emergency food"
//
//	[[resource]]
//	name = "Northside Pantry"
//	category = "Food Bank"
//	address = "12 Main St"
//	services = ["Meals", "Groceries"]
//	population = ["Families"]
//	approved = true
//	created_at = 2024-03-01T10:00:00Z
//
// Resources are imported unapproved unless approved is set.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/log"
	"github.com/rubiojr/resdir/pkg/storage"
)

type Category struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type Resource struct {
	Name        string    `toml:"name"`
	Description string    `toml:"description"`
	Address     string    `toml:"address"`
	Category    string    `toml:"category"`
	Services    []string  `toml:"services"`
	Population  []string  `toml:"population"`
	Approved    bool      `toml:"approved"`
	Phone       string    `toml:"phone"`
	Website     string    `toml:"website"`
	CreatedAt   time.Time `toml:"created_at"`
}

// Catalog is the decoded form of a seed file.
type Catalog struct {
	Categories []Category `toml:"category"`
	Resources  []Resource `toml:"resource"`
}

// Importer is the storage side of Apply.
type Importer interface {
	Import(ctx context.Context, batch storage.ImportBatch) (*storage.ImportResult, error)
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a catalog. Unknown keys are rejected so
// typos do not silently drop data.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("decoding catalog: %s", strict.String())
		}
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every problem found, joined in a single error.
func (c *Catalog) Validate() error {
	var errs []error

	categories := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		name := strings.TrimSpace(cat.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("category #%d: name is required", i+1))
		case strings.Contains(name, ","):
			errs = append(errs, fmt.Errorf("category %q: name must not contain commas", name))
		case categories[name]:
			errs = append(errs, fmt.Errorf("category %q: duplicate", name))
		}
		categories[name] = true
	}

	resources := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("resource #%d: name is required", i+1))
			continue
		}
		if resources[name] {
			errs = append(errs, fmt.Errorf("resource %q: duplicate", name))
		}
		resources[name] = true
		for _, v := range append(append([]string{}, r.Services...), r.Population...) {
			if strings.Contains(v, ",") {
				errs = append(errs, fmt.Errorf("resource %q: value %q must not contain commas", name, v))
			}
		}
	}

	return errors.Join(errs...)
}

// Batch converts the catalog into a storage import batch. Names are
// trimmed and list values normalized the same way search filters are, so
// that overlap filters match what users type.
func (c *Catalog) Batch() storage.ImportBatch {
	batch := storage.ImportBatch{
		Categories: make([]core.Category, 0, len(c.Categories)),
		Resources:  make([]storage.ImportResource, 0, len(c.Resources)),
	}
	for _, cat := range c.Categories {
		batch.Categories = append(batch.Categories, core.Category{
			Name:        strings.TrimSpace(cat.Name),
			Description: strings.TrimSpace(cat.Description),
		})
	}
	for _, r := range c.Resources {
		batch.Resources = append(batch.Resources, storage.ImportResource{
			Category: strings.TrimSpace(r.Category),
			Resource: core.Resource{
				Name:             strings.TrimSpace(r.Name),
				Description:      strings.TrimSpace(r.Description),
				Address:          strings.TrimSpace(r.Address),
				ServicesOffered:  intent.NormalizeList(r.Services),
				PopulationServed: intent.NormalizeList(r.Population),
				Approved:         r.Approved,
				Phone:            strings.TrimSpace(r.Phone),
				Website:          strings.TrimSpace(r.Website),
				CreatedAt:        r.CreatedAt,
			},
		})
	}
	return batch
}

// Apply writes the catalog through imp in one batch.
func (c *Catalog) Apply(ctx context.Context, imp Importer) (*storage.ImportResult, error) {
	res, err := imp.Import(ctx, c.Batch())
	if err != nil {
		return nil, fmt.Errorf("importing catalog: %w", err)
	}
	log.ForService("catalog").Infof("imported %d categories and %d resources", res.Categories, res.Resources)
	return res, nil
}
