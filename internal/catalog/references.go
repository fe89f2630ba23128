package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/Cheertaboi/coupon-form-service/internal/models"
)

// References holds the pre-loaded catalogs, enterprise customers and coupon
// categories a coupon can point at. It is read-only after construction.
type References struct {
	catalogs   map[string]models.RefItem
	customers  map[string]models.RefItem
	categories map[string]struct{}
}

type referencesFile struct {
	Catalogs            []models.RefItem `yaml:"catalogs"`
	EnterpriseCustomers []models.RefItem `yaml:"enterprise_customers"`
	Categories          []string         `yaml:"categories"`
}

func NewReferences(catalogs, customers []models.RefItem, categories ...string) (*References, error) {
	r := &References{
		catalogs:   make(map[string]models.RefItem, len(catalogs)),
		customers:  make(map[string]models.RefItem, len(customers)),
		categories: make(map[string]struct{}, len(categories)),
	}
	if err := index(r.catalogs, catalogs); err != nil {
		return nil, fmt.Errorf("catalogs: %w", err)
	}
	if err := index(r.customers, customers); err != nil {
		return nil, fmt.Errorf("enterprise customers: %w", err)
	}
	for _, name := range categories {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("categories: empty name")
		}
		if _, dup := r.categories[name]; dup {
			return nil, fmt.Errorf("categories: duplicate name %q", name)
		}
		r.categories[name] = struct{}{}
	}
	return r, nil
}

func index(dst map[string]models.RefItem, items []models.RefItem) error {
	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		item.Name = strings.TrimSpace(item.Name)
		if item.ID == "" {
			return fmt.Errorf("entry %q has no id", item.Name)
		}
		if _, dup := dst[item.ID]; dup {
			return fmt.Errorf("duplicate id %q", item.ID)
		}
		dst[item.ID] = item
	}
	return nil
}

// LoadReferences reads a YAML file with catalogs, enterprise_customers and
// categories lists. An empty path yields empty collections.
func LoadReferences(path string) (*References, error) {
	if path == "" {
		return NewReferences(nil, nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read references: %w", err)
	}
	var file referencesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode references: %w", err)
	}
	return NewReferences(file.Catalogs, file.EnterpriseCustomers, file.Categories...)
}

func (r *References) Catalog(id string) (models.RefItem, bool) {
	item, ok := r.catalogs[id]
	return item, ok
}

func (r *References) EnterpriseCustomer(id string) (models.RefItem, bool) {
	item, ok := r.customers[id]
	return item, ok
}

// Catalogs lists the catalogs sorted by name.
func (r *References) Catalogs() []models.RefItem { return sorted(r.catalogs) }

// EnterpriseCustomers lists the customers sorted by name.
func (r *References) EnterpriseCustomers() []models.RefItem { return sorted(r.customers) }

// Categories lists the coupon category names in order.
func (r *References) Categories() []string {
	out := lo.Keys(r.categories)
	sort.Strings(out)
	return out
}

func (r *References) HasCategory(name string) bool {
	_, ok := r.categories[name]
	return ok
}

func sorted(m map[string]models.RefItem) []models.RefItem {
	out := make([]models.RefItem, 0, len(m))
	for _, item := range m {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
