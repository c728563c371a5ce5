package catalog

import "testing"

func ids(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDefault_PricesNeverExceedOriginal(t *testing.T) {
	c := Default()
	for _, kind := range []Kind{KindTest, KindPackage} {
		for _, it := range c.All(kind) {
			if it.Price < 0 || it.OriginalPrice < it.Price {
				t.Errorf("%s %d: price %d original %d", kind, it.ID, it.Price, it.OriginalPrice)
			}
			if it.Kind != kind {
				t.Errorf("%s %d: expected kind to be stamped, got %q", kind, it.ID, it.Kind)
			}
		}
	}
	if n := len(c.All(KindTest)); n != 8 {
		t.Errorf("expected 8 tests, got %d", n)
	}
	if n := len(c.All(KindPackage)); n != 5 {
		t.Errorf("expected 5 packages, got %d", n)
	}
}

func TestFeatured(t *testing.T) {
	c := Default()
	if got := ids(c.Featured(KindTest)); !equalInts(got, []int{1, 2, 4, 5}) {
		t.Errorf("unexpected featured tests %v", got)
	}
	if got := ids(c.Featured(KindPackage)); !equalInts(got, []int{101, 102}) {
		t.Errorf("unexpected featured packages %v", got)
	}
}

func TestByID(t *testing.T) {
	c := Default()
	it, ok := c.ByID(KindTest, 1)
	if !ok || it.Price != 299 || it.OriginalPrice != 399 {
		t.Fatalf("expected CBC at 299/399, got %+v ok=%v", it, ok)
	}
	pkg, ok := c.ByID(KindPackage, 101)
	if !ok || pkg.Price != 2999 || pkg.Savings() != 2000 {
		t.Fatalf("expected executive package at 2999 saving 2000, got %+v", pkg)
	}
	if _, ok := c.ByID(KindTest, 101); ok {
		t.Error("package id must not resolve as a test")
	}
	if _, ok := c.ByID(KindPackage, 999); ok {
		t.Error("expected missing id to be absent")
	}
}

func TestByCategory(t *testing.T) {
	c := Default()
	if got := ids(c.ByCategory(KindTest, "Organ Health")); !equalInts(got, []int{3, 6}) {
		t.Errorf("unexpected organ health tests %v", got)
	}
	for _, all := range []string{AllCategories, AllTests} {
		if n := len(c.ByCategory(KindTest, all)); n != 8 {
			t.Errorf("%q: expected all 8 tests, got %d", all, n)
		}
	}
	if n := len(c.ByCategory(KindPackage, AllPackages)); n != 5 {
		t.Errorf("expected all 5 packages, got %d", n)
	}
	if n := len(c.ByCategory(KindTest, "Cardiology")); n != 0 {
		t.Errorf("expected unknown category to be empty, got %d", n)
	}
}

func TestSearch(t *testing.T) {
	c := Default()
	if got := ids(c.Search(KindTest, "THYROID")); !equalInts(got, []int{4}) {
		t.Errorf("expected name match, got %v", got)
	}
	// "ferritin" only appears in the description.
	if got := ids(c.Search(KindTest, "ferritin")); !equalInts(got, []int{8}) {
		t.Errorf("expected description match, got %v", got)
	}
	if n := len(c.Search(KindPackage, "  ")); n != 5 {
		t.Errorf("blank query should return everything, got %d", n)
	}
}

func TestList_CombinesFilters(t *testing.T) {
	c := Default()
	got := ids(c.List(KindTest, Query{Category: "Heart Health", Search: "lipid", FeaturedOnly: true}))
	if !equalInts(got, []int{2}) {
		t.Errorf("expected [2], got %v", got)
	}
	got = ids(c.List(KindTest, Query{Category: AllTests, FeaturedOnly: true}))
	if !equalInts(got, []int{1, 2, 4, 5}) {
		t.Errorf("expected featured tests, got %v", got)
	}
}

func TestCategories(t *testing.T) {
	c := Default()
	cats := c.Categories(KindPackage)
	if len(cats) != 6 || cats[0] != AllPackages {
		t.Errorf("unexpected package categories %v", cats)
	}
	cats[0] = "mutated"
	if c.Categories(KindPackage)[0] != AllPackages {
		t.Error("Categories must return a copy")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"tests": KindTest, "test": KindTest, "packages": KindPackage} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseKind("scans"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
