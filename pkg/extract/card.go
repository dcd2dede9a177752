package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/geniass/shelf-dealz/pkg/price"
	"github.com/geniass/shelf-dealz/pkg/product"
)

// CardSelectors are tried in order on a listing page; the first one that
// matches anything decides what a card is.
var CardSelectors = []string{
	`[data-testid*="product"]`,
	".vtex-product-summary",
	`[class*="product-item"]`,
	`[class*="shelf-item"]`,
	".product",
}

var cardMatchers = compileAll(CardSelectors)

var (
	cardNameSelectors = []string{
		`[data-testid="product-name"]`,
		"h3",
		".product__title",
		".shelf-item__title",
		"a[title]",
	}
	cardNameAttrs = []string{"title", "alt", "data-name"}
)

func compileAll(selectors []string) []goquery.Matcher {
	ms := make([]goquery.Matcher, len(selectors))
	for i, s := range selectors {
		ms[i] = cascadia.MustCompile(s)
	}
	return ms
}

// Cards returns the product cards of a listing page and the selector that
// found them. No cards yields an empty selector.
func Cards(doc *goquery.Document) (string, []*goquery.Selection) {
	for i, m := range cardMatchers {
		// a match nested in another match is part of that card
		found := doc.FindMatcher(m).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.ParentsMatcher(m).Length() == 0
		})
		if found.Length() == 0 {
			continue
		}
		cards := make([]*goquery.Selection, 0, found.Length())
		found.Each(func(_ int, s *goquery.Selection) {
			cards = append(cards, s)
		})
		return CardSelectors[i], cards
	}
	return "", nil
}

// FromCard builds a candidate from one listing card. Relative links are
// resolved against base.
func FromCard(card *goquery.Selection, base *url.URL) product.Candidate {
	c := product.Candidate{Availability: product.AvailabilityUnknown}

	if name, ok := SelectFirst(card, cardNameSelectors); ok {
		c.HeadingName = name
	} else if name, ok := OwnAttr(card, cardNameAttrs); ok {
		c.HeadingName = name
	} else {
		c.HeadingName, _ = SelectFirstAttr(card, []string{"a[title]", "img[alt]"}, cardNameAttrs)
	}

	if href, ok := SelectFirstAttr(card, []string{"a[href]"}, []string{"href"}); ok {
		c.URL = resolve(base, href)
	} else if href, ok := OwnAttr(card, []string{"href"}); ok {
		c.URL = resolve(base, href)
	}

	c.SelectorBrand, _ = SelectFirst(card, BrandSelectors)

	if sku, ok := OwnAttr(card, skuAttrs); ok {
		c.AttrSKU = sku
	} else {
		c.AttrSKU, _ = SelectFirstAttr(card, skuSelectors, skuAttrs)
	}

	if s, ok := fragments(card, genericFragments); ok {
		c.OnlinePrice = append(c.OnlinePrice, s)
	}
	if text, ok := SelectFirst(card, PriceSelectors); ok {
		c.OnlinePrice = append(c.OnlinePrice, price.Text(text))
	}

	c.ImageCount = card.Find("img").Length()
	return c
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
