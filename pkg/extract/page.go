package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/geniass/shelf-dealz/pkg/price"
	"github.com/geniass/shelf-dealz/pkg/product"
)

var (
	NameSelectors = []string{
		"h1",
		".product__title",
		".vtex-store-components-3-x-productBrand",
		`[data-testid="product-name"]`,
	}
	BrandSelectors = []string{
		`[data-testid="brand"]`,
		".brand",
		".product__brand",
	}
	PriceSelectors = []string{
		`[data-testid="price-online"]`,
		".product__price",
		".price",
	}

	skuAttrs     = []string{"data-sku", "data-product-sku"}
	skuSelectors = []string{"[data-sku]", "[data-product-sku]"}
	metaSKU      = []string{`meta[property="product:retailer_part_no"]`, `meta[name="sku"]`}

	outOfStockPhrases = []string{"out of stock", "agotado", "sin stock", "no disponible"}
)

// fragmentSelectors locate a split price widget. VTEX renders the integer,
// then a decimal separator span, then the fraction; fractions are tried in
// order and only a node holding digits counts.
type fragmentSelectors struct {
	integer   string
	fractions []string
}

var (
	onlineFragments = fragmentSelectors{
		integer:   `span[class*="currencyInteger--PDPPrice"]`,
		fractions: []string{`span[class*="currencyFraction--PDPPrice"]`, `span[class*="currencyDecimal--PDPPrice"]`},
	}
	regularFragments = fragmentSelectors{
		integer:   `span[class*="currencyInteger--PDPListPrice"]`,
		fractions: []string{`span[class*="currencyFraction--PDPListPrice"]`, `span[class*="currencyDecimal--PDPListPrice"]`},
	}
	genericFragments = fragmentSelectors{
		integer:   `span[class*="currencyInteger"]`,
		fractions: []string{`span[class*="currencyFraction"]`, `span[class*="currencyDecimal"]`},
	}
)

// FromPage builds the candidate for a product detail page. Missing sources
// are left empty; nothing here fails.
func FromPage(url string, body []byte) product.Candidate {
	c := product.Candidate{URL: url, Availability: product.AvailabilityUnknown}

	md, hasMetadata := FindProductMetadata(body)
	if hasMetadata {
		c.StructuredName = md.Name
		c.StructuredSKU = md.SKU
		c.StructuredBrand = md.Brand
		c.OnlinePrice = append(c.OnlinePrice, md.OnlinePrice...)
		c.RegularPrice = append(c.RegularPrice, md.RegularPrice...)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return c
	}
	sel := doc.Selection

	c.HeadingName, _ = SelectFirst(sel, NameSelectors)
	c.SelectorBrand, _ = SelectFirst(sel, BrandSelectors)
	c.AttrSKU, _ = SelectFirstAttr(sel, skuSelectors, skuAttrs)
	c.MetaSKU, _ = SelectFirstAttr(sel, metaSKU, []string{"content"})
	c.Breadcrumb = lastBreadcrumb(sel)
	c.ImageCount = sel.Find("img").Length()

	if s, ok := fragments(sel, onlineFragments); ok {
		c.OnlinePrice = append(c.OnlinePrice, s)
	} else if s, ok := fragments(sel, genericFragments); ok {
		c.OnlinePrice = append(c.OnlinePrice, s)
	}
	if s, ok := fragments(sel, regularFragments); ok {
		c.RegularPrice = append(c.RegularPrice, s)
	}
	if text, ok := SelectFirst(sel, PriceSelectors); ok {
		c.OnlinePrice = append(c.OnlinePrice, price.Text(text))
	}

	c.Availability = pageAvailability(doc)
	if hasMetadata && md.Availability != product.AvailabilityUnknown {
		c.Availability = md.Availability
	}
	return c
}

func fragments(sel *goquery.Selection, fs fragmentSelectors) (price.Signal, bool) {
	integer := strings.TrimSpace(sel.Find(fs.integer).First().Text())
	if integer == "" {
		return price.Absent(), false
	}
	var fraction string
	for _, f := range fs.fractions {
		sel.Find(f).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := strings.TrimSpace(s.Text()); strings.ContainsAny(t, "0123456789") {
				fraction = t
				return false
			}
			return true
		})
		if fraction != "" {
			break
		}
	}
	return price.Fragments(integer, fraction), true
}

func lastBreadcrumb(sel *goquery.Selection) string {
	var last string
	sel.Find(".breadcrumb, .breadcrumbs").First().Find("a").Each(func(_ int, a *goquery.Selection) {
		if t := strings.TrimSpace(a.Text()); t != "" {
			last = t
		}
	})
	return last
}

// pageAvailability reads the visible text of a page that was fetched, so the
// answer is never unknown.
func pageAvailability(doc *goquery.Document) product.Availability {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	text := strings.ToLower(body.Text())
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(text, phrase) {
			return product.AvailabilityOutOfStock
		}
	}
	return product.AvailabilityInStock
}
