// Package record turns a product.Candidate into a canonical product.Record.
// Every function here is a pure function of its inputs apart from the
// builder's clock.
package record

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/shopspring/decimal"

	"github.com/geniass/shelf-dealz/pkg/price"
	"github.com/geniass/shelf-dealz/pkg/product"
)

const (
	DefaultCategory     = "sitemap_product"
	UnknownSubcategory  = "unknown"
	DefaultPresentation = "unit"
)

// Rejecter receives candidates that cannot become records.
type Rejecter interface {
	Reject(url, reason, detail string)
}

type Builder struct {
	siteTag  string
	rejecter Rejecter
	now      func() time.Time
}

// NewBuilder prefixes synthesized SKUs with siteTag. now may be nil.
func NewBuilder(siteTag string, rejecter Rejecter, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{
		siteTag:  siteTag,
		rejecter: rejecter,
		now:      now,
	}
}

// Build resolves every field through its fallback chain. It returns nil and
// reports the candidate to the rejecter when no name can be found.
func (b *Builder) Build(c product.Candidate, categoryHint, brandDefault string) *product.Record {
	name := first(CleanText(c.StructuredName), CleanText(c.HeadingName))
	if name == "" {
		if b.rejecter != nil {
			b.rejecter.Reject(c.URL, product.ReasonMissingName, describeMissingName(c))
		}
		return nil
	}

	sku := first(
		strings.TrimSpace(c.StructuredSKU),
		strings.TrimSpace(c.AttrSKU),
		strings.TrimSpace(c.MetaSKU),
	)
	if sku == "" {
		sku = SynthesizeSKU(b.siteTag, name, c.URL)
	}

	categoryHint = strings.TrimSpace(categoryHint)
	category := first(categoryHint, DefaultCategory)
	subcategory := first(CleanText(c.Breadcrumb), categoryHint, UnknownSubcategory)
	brand := first(CleanText(c.StructuredBrand), CleanText(c.SelectorBrand), brandDefault)

	online := price.Reconcile(c.OnlinePrice...)
	regular := price.Reconcile(c.RegularPrice...)

	availability := c.Availability
	if availability == "" {
		availability = product.AvailabilityUnknown
	}

	y, m, d := b.now().Date()
	return &product.Record{
		Name:         name,
		OnlinePrice:  online,
		RegularPrice: regular,
		Brand:        brand,
		Category:     category,
		Subcategory:  subcategory,
		SKU:          sku,
		DiscountPct:  Discount(online, regular),
		Presentation: Presentation(name),
		URL:          c.URL,
		ExtractedOn:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Hash:         IdentityHash(name, sku),
		ImageCount:   c.ImageCount,
		Availability: availability,
	}
}

func describeMissingName(c product.Candidate) string {
	var present []string
	if c.StructuredSKU != "" || c.AttrSKU != "" || c.MetaSKU != "" {
		present = append(present, "sku")
	}
	if c.StructuredBrand != "" || c.SelectorBrand != "" {
		present = append(present, "brand")
	}
	if len(c.OnlinePrice) > 0 || len(c.RegularPrice) > 0 {
		present = append(present, "price")
	}
	if len(present) == 0 {
		return "no signals"
	}
	return "present: " + strings.Join(present, ",")
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var whitespace = regexp.MustCompile(`\s+`)

// CleanText strips markup and entities and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "<") {
		s = sanitize.HTML(s)
	}
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Discount is the percentage saved relative to the regular price, rounded to
// two places, or zero when regular > online > 0 does not hold.
func Discount(online, regular decimal.Decimal) decimal.Decimal {
	if !online.IsPositive() || !regular.GreaterThan(online) {
		return decimal.Zero
	}
	return regular.Sub(online).Div(regular).Mul(decimal.NewFromInt(100)).Round(2)
}

var presentationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?\s*(?:kg|g|gr|ml|l|lt|un|und|unidades?)\b)`),
	regexp.MustCompile(`(?i)(\d+\s*x\s*\d+(?:[.,]\d+)?\s*(?:kg|g|ml|l)\b)`),
	regexp.MustCompile(`(?i)((?:pack|paquete)\s*\d+)`),
	regexp.MustCompile(`(?i)((?:box|caja)\s*\d+)`),
	regexp.MustCompile(`(?i)((?:bottle|botella)\s*\d+\s*ml)`),
	regexp.MustCompile(`(?i)((?:bag|bolsa)\s*\d+\s*g)`),
}

// Presentation extracts the unit descriptor from a product name ("1L",
// "pack 6"), defaulting to "unit".
func Presentation(name string) string {
	for _, p := range presentationPatterns {
		if m := p.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	return DefaultPresentation
}

// IdentityHash is the dedup key of a record. It is not a security primitive.
func IdentityHash(name, sku string) string {
	sum := md5.Sum([]byte(name + "|" + sku))
	return hex.EncodeToString(sum[:])
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SynthesizeSKU builds a stable identifier for products that expose none:
// TAG_NAMEPREFIX_NNNN where NNNN is derived from the name and source URL.
func SynthesizeSKU(tag, name, sourceURL string) string {
	clean := strings.ToUpper(nonAlnum.ReplaceAllString(sanitize.Accents(name), ""))
	if len(clean) > 10 {
		clean = clean[:10]
	}
	if clean == "" {
		clean = "ITEM"
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(name + "|" + sourceURL))
	suffix := 1000 + h.Sum32()%9000

	if tag == "" {
		return fmt.Sprintf("%s_%04d", clean, suffix)
	}
	return fmt.Sprintf("%s_%s_%04d", strings.ToUpper(tag), clean, suffix)
}
