package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/checklist-advisor/internal/data/repos"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/dbctx"
)

// Catalog is the read-only source of checklist items. Items returns them in
// the order generation must follow.
type Catalog interface {
	Items(ctx context.Context) ([]*types.ChecklistItem, error)
	// Item returns nil, nil when the id is unknown.
	Item(ctx context.Context, id string) (*types.ChecklistItem, error)
}

type dbCatalog struct {
	repo repos.ChecklistItemRepo
}

func NewDBCatalog(repo repos.ChecklistItemRepo) Catalog {
	return &dbCatalog{repo: repo}
}

func (c *dbCatalog) Items(ctx context.Context) ([]*types.ChecklistItem, error) {
	return c.repo.List(dbctx.With(ctx))
}

func (c *dbCatalog) Item(ctx context.Context, id string) (*types.ChecklistItem, error) {
	return c.repo.GetByID(dbctx.With(ctx), id)
}

// StaticCatalog serves a fixed list in slice order.
type StaticCatalog []*types.ChecklistItem

func (c StaticCatalog) Items(ctx context.Context) ([]*types.ChecklistItem, error) {
	out := make([]*types.ChecklistItem, len(c))
	copy(out, c)
	return out, nil
}

func (c StaticCatalog) Item(ctx context.Context, id string) (*types.ChecklistItem, error) {
	for _, it := range c {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, nil
}

type catalogFile struct {
	Items []*types.ChecklistItem `yaml:"items"`
}

// LoadFileCatalog reads items from a YAML document of the form `items: [...]`,
// keeping file order.
func LoadFileCatalog(path string) (StaticCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (StaticCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Items))
	for i, it := range f.Items {
		if it == nil || strings.TrimSpace(it.ID) == "" {
			return nil, fmt.Errorf("catalog item %d has no id", i)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("catalog item id %q is duplicated", it.ID)
		}
		seen[it.ID] = true
		if it.SortOrder == 0 {
			it.SortOrder = i
		}
	}
	return StaticCatalog(f.Items), nil
}
