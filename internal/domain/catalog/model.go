package catalog

import "fmt"

// Kind distinguishes the two catalog variants.
type Kind string

const (
	KindTest    Kind = "test"
	KindPackage Kind = "package"
)

// ParseKind accepts the singular and plural forms used in URLs.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "test", "tests":
		return KindTest, nil
	case "package", "packages":
		return KindPackage, nil
	}
	return "", fmt.Errorf("unknown catalog kind %q", s)
}

// Category sentinels that select every item.
const (
	AllCategories = "All"
	AllTests      = "All Tests"
	AllPackages   = "All Packages"
)

// Item is a test or package. Prices are whole rupees and OriginalPrice is
// never below Price.
type Item struct {
	ID            int      `json:"id"`
	Kind          Kind     `json:"kind"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         int64    `json:"price"`
	OriginalPrice int64    `json:"originalPrice"`
	Duration      string   `json:"duration"`
	Category      string   `json:"category"`
	Parameters    int      `json:"parameters"`
	Includes      []string `json:"includes"`
	Featured      bool     `json:"featured"`

	// Tests only.
	Fasting     bool     `json:"fasting,omitempty"`
	ReportTime  string   `json:"reportTime,omitempty"`
	SampleType  string   `json:"sampleType,omitempty"`
	Preparation []string `json:"preparation,omitempty"`
	WhyTakeTest string   `json:"whyTakeTest,omitempty"`
	NormalRange string   `json:"normalRange,omitempty"`

	// Packages only.
	SuitableFor   []string `json:"suitableFor,omitempty"`
	WhyChoose     string   `json:"whyChoose,omitempty"`
	TestsIncluded []int    `json:"testsIncluded,omitempty"`
}

// Savings is the per-item discount already embedded in Price.
func (i Item) Savings() int64 {
	return i.OriginalPrice - i.Price
}
