// Package catalog serves the static list of lab tests and health packages.
package catalog

import "strings"

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	items      map[Kind][]Item
	index      map[Kind]map[int]int
	categories map[Kind][]string
}

// New builds a catalog from the given items. Kind is stamped on every item.
func New(tests, packages []Item, testCats, packageCats []string) *Catalog {
	c := &Catalog{
		items:      map[Kind][]Item{},
		index:      map[Kind]map[int]int{},
		categories: map[Kind][]string{KindTest: testCats, KindPackage: packageCats},
	}
	c.load(KindTest, tests)
	c.load(KindPackage, packages)
	return c
}

// Default returns the catalog offered on the site.
func Default() *Catalog {
	return New(bloodTests, healthPackages, testCategories, packageCategories)
}

func (c *Catalog) load(kind Kind, items []Item) {
	list := make([]Item, len(items))
	idx := make(map[int]int, len(items))
	for i, it := range items {
		it.Kind = kind
		list[i] = it
		idx[it.ID] = i
	}
	c.items[kind] = list
	c.index[kind] = idx
}

// All returns every item of kind in catalog order.
func (c *Catalog) All(kind Kind) []Item {
	return append([]Item(nil), c.items[kind]...)
}

// Featured returns featured items in catalog order.
func (c *Catalog) Featured(kind Kind) []Item {
	return c.filter(kind, func(it Item) bool { return it.Featured })
}

// ByID looks up one item. A missing id is reported through ok, not an error.
func (c *Catalog) ByID(kind Kind, id int) (Item, bool) {
	i, ok := c.index[kind][id]
	if !ok {
		return Item{}, false
	}
	return c.items[kind][i], true
}

// ByCategory filters on the exact category label. The "All" sentinels return
// everything.
func (c *Catalog) ByCategory(kind Kind, category string) []Item {
	if isAll(category) {
		return c.All(kind)
	}
	return c.filter(kind, func(it Item) bool { return it.Category == category })
}

// Search matches query case-insensitively against name and description.
func (c *Catalog) Search(kind Kind, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.All(kind)
	}
	return c.filter(kind, func(it Item) bool {
		return strings.Contains(strings.ToLower(it.Name), q) ||
			strings.Contains(strings.ToLower(it.Description), q)
	})
}

// Query combines the listing filters used by the tests and packages pages.
type Query struct {
	Category     string
	Search       string
	FeaturedOnly bool
}

// List applies q. Empty fields do not filter.
func (c *Catalog) List(kind Kind, q Query) []Item {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	return c.filter(kind, func(it Item) bool {
		if q.FeaturedOnly && !it.Featured {
			return false
		}
		if q.Category != "" && !isAll(q.Category) && it.Category != q.Category {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(it.Name), search) &&
			!strings.Contains(strings.ToLower(it.Description), search) {
			return false
		}
		return true
	})
}

// Categories returns the category labels for kind, sentinel first.
func (c *Catalog) Categories(kind Kind) []string {
	return append([]string(nil), c.categories[kind]...)
}

func (c *Catalog) filter(kind Kind, keep func(Item) bool) []Item {
	out := []Item{}
	for _, it := range c.items[kind] {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func isAll(category string) bool {
	return category == AllCategories || category == AllTests || category == AllPackages
}
