// Package product holds the records that flow through the extraction
// pipeline: raw per-page candidates, canonical records and audit discards.
package product

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/geniass/shelf-dealz/pkg/price"
)

type Availability string

const (
	AvailabilityUnknown    Availability = "unknown"
	AvailabilityInStock    Availability = "in_stock"
	AvailabilityOutOfStock Availability = "out_of_stock"
)

// Discard reasons.
const (
	ReasonNotProduct            = "not_product"
	ReasonClassificationUnknown = "classification_unknown"
	ReasonRobotsDisallowed      = "robots_disallowed"
	ReasonFetchFailed           = "fetch_failed"
	ReasonMissingName           = "missing_name"
)

// Candidate is everything observed about one product before reconciliation.
// Each source gets its own field so the builder can walk the fallback chains
// in order.
type Candidate struct {
	URL string

	StructuredName string
	HeadingName    string

	StructuredSKU string
	AttrSKU       string
	MetaSKU       string

	StructuredBrand string
	SelectorBrand   string

	Breadcrumb string

	OnlinePrice  []price.Signal
	RegularPrice []price.Signal

	Availability Availability
	ImageCount   int
}

// WithFallback returns a copy of c where every empty source is taken from
// other. Price signals are appended so c's signals are consulted first within
// the same kind.
func (c Candidate) WithFallback(other Candidate) Candidate {
	out := c
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&out.URL, other.URL)
	fill(&out.StructuredName, other.StructuredName)
	fill(&out.HeadingName, other.HeadingName)
	fill(&out.StructuredSKU, other.StructuredSKU)
	fill(&out.AttrSKU, other.AttrSKU)
	fill(&out.MetaSKU, other.MetaSKU)
	fill(&out.StructuredBrand, other.StructuredBrand)
	fill(&out.SelectorBrand, other.SelectorBrand)
	fill(&out.Breadcrumb, other.Breadcrumb)

	out.OnlinePrice = append(append([]price.Signal{}, c.OnlinePrice...), other.OnlinePrice...)
	out.RegularPrice = append(append([]price.Signal{}, c.RegularPrice...), other.RegularPrice...)

	if out.Availability == "" || out.Availability == AvailabilityUnknown {
		out.Availability = other.Availability
	}
	if out.ImageCount == 0 {
		out.ImageCount = other.ImageCount
	}
	return out
}

// Record is the canonical, exported product row.
type Record struct {
	Name         string          `json:"name" yaml:"name"`
	OnlinePrice  decimal.Decimal `json:"price_online" yaml:"price_online"`
	RegularPrice decimal.Decimal `json:"price_regular" yaml:"price_regular"`
	Brand        string          `json:"brand" yaml:"brand"`
	Category     string          `json:"category" yaml:"category"`
	Subcategory  string          `json:"subcategory" yaml:"subcategory"`
	SKU          string          `json:"sku" yaml:"sku"`
	DiscountPct  decimal.Decimal `json:"discount_pct" yaml:"discount_pct"`
	Presentation string          `json:"presentation" yaml:"presentation"`
	URL          string          `json:"url" yaml:"url"`
	ExtractedOn  time.Time       `json:"extraction_date" yaml:"extraction_date"`
	Hash         string          `json:"hash_id" yaml:"hash_id"`
	ImageCount   int             `json:"images_count" yaml:"images_count"`
	Availability Availability    `json:"availability" yaml:"availability"`
}

// Columns is the tabular export order of a Record.
var Columns = []string{
	"name",
	"price_online",
	"price_regular",
	"brand",
	"category",
	"subcategory",
	"sku",
	"discount_pct",
	"presentation",
	"url",
	"extraction_date",
	"hash_id",
	"images_count",
	"availability",
}

const DateLayout = "2006-01-02"

// Discard is an audit row for a URL that produced no record.
type Discard struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}
