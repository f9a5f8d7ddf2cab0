// Package catalog serves the static filter-definition document and the
// category taxonomy. Both are loaded once at startup and never
// invalidated.
package catalog

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/ports"
)

const cacheSize = 128

type filterDocument struct {
	Data map[string][]filterEntry `json:"data"`
}

type filterEntry struct {
	Label   string          `json:"label"`
	Values  json.RawMessage `json:"values"`
	Options []filterOption  `json:"options"`
}

type filterOption struct {
	Categories []int `json:"categories"`
}

// Catalog resolves per-category filter definitions with an LRU memo.
type Catalog struct {
	definitions map[string][]filterEntry
	categories  []domain.Category
	cache       *lru.Cache[int, []domain.FilterDefinition]
	logger      *slog.Logger
}

var _ ports.FilterCatalog = (*Catalog)(nil)

// Load reads both documents. Missing or malformed files are non-fatal;
// the affected part of the catalog stays empty.
func Load(filtersPath, categoriesPath string, logger *slog.Logger) *Catalog {
	cache, _ := lru.New[int, []domain.FilterDefinition](cacheSize)
	c := &Catalog{
		definitions: map[string][]filterEntry{},
		cache:       cache,
		logger:      logger,
	}

	if filtersPath != "" {
		if raw, err := os.ReadFile(filtersPath); err != nil {
			c.warn("filter document unavailable", "path", filtersPath, "error", err)
		} else {
			var doc filterDocument
			if err := json.Unmarshal(raw, &doc); err != nil {
				c.warn("filter document malformed", "path", filtersPath, "error", err)
			} else {
				c.definitions = doc.Data
			}
		}
	}

	if categoriesPath != "" {
		if raw, err := os.ReadFile(categoriesPath); err != nil {
			c.warn("category taxonomy unavailable", "path", categoriesPath, "error", err)
		} else {
			c.categories = parseCategories(raw)
			if c.categories == nil {
				c.warn("category taxonomy malformed", "path", categoriesPath)
			}
		}
	}

	return c
}

// FiltersFor returns the filter definitions applicable to the category,
// ordered by key.
func (c *Catalog) FiltersFor(categoryID int) []domain.FilterDefinition {
	if cached, ok := c.cache.Get(categoryID); ok {
		return cached
	}

	keys := make([]string, 0, len(c.definitions))
	for key := range c.definitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	filters := make([]domain.FilterDefinition, 0)
	for _, key := range keys {
		for _, entry := range c.definitions[key] {
			if !entry.appliesTo(categoryID) {
				continue
			}
			label := entry.Label
			if label == "" {
				label = key
			}
			filters = append(filters, domain.FilterDefinition{
				Key:    key,
				Label:  label,
				Values: entry.Values,
			})
		}
	}

	c.cache.Add(categoryID, filters)
	return filters
}

// Categories returns the taxonomy tree.
func (c *Catalog) Categories() []domain.Category {
	return c.categories
}

func (e filterEntry) appliesTo(categoryID int) bool {
	for _, option := range e.Options {
		for _, id := range option.Categories {
			if id == categoryID {
				return true
			}
		}
	}
	return false
}

// parseCategories accepts either a top-level array or a single root node.
func parseCategories(raw []byte) []domain.Category {
	var tree []domain.Category
	if err := json.Unmarshal(raw, &tree); err == nil {
		return tree
	}
	var root domain.Category
	if err := json.Unmarshal(raw, &root); err == nil {
		return []domain.Category{root}
	}
	return nil
}

func (c *Catalog) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
