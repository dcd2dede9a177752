// Package extract pulls product signals out of detail pages and listing
// cards: schema.org JSON-LD, storefront widgets and generic selectors.
package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/shopspring/decimal"

	"github.com/geniass/shelf-dealz/pkg/price"
	"github.com/geniass/shelf-dealz/pkg/product"
)

const jsonLDPath = `//script[@type='application/ld+json']`

// Metadata is what the first schema.org Product or Offer block on a page
// says about the product.
type Metadata struct {
	Name  string
	SKU   string
	Brand string

	OnlinePrice  []price.Signal
	RegularPrice []price.Signal

	Availability product.Availability
}

// FindProductMetadata scans the JSON-LD blocks of body for the first Product
// or Offer node. Blocks that do not parse are skipped.
func FindProductMetadata(body []byte) (Metadata, bool) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return Metadata{}, false
	}
	scripts, err := htmlquery.QueryAll(doc, jsonLDPath)
	if err != nil {
		return Metadata{}, false
	}

	for _, s := range scripts {
		text := strings.TrimSpace(htmlquery.InnerText(s))
		if text == "" {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			continue
		}

		if node, ok := findProductNode(v); ok {
			return metadataFrom(node), true
		}
	}
	return Metadata{}, false
}

func findProductNode(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if node, ok := findProductNode(item); ok {
				return node, true
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			return t, true
		}
		if graph, ok := t["@graph"]; ok {
			return findProductNode(graph)
		}
	}
	return nil, false
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Product" || t == "Offer"
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func metadataFrom(node map[string]any) Metadata {
	md := Metadata{
		Name:         stringField(node, "name"),
		SKU:          firstString(stringField(node, "sku"), stringField(node, "mpn"), stringField(node, "productID")),
		Brand:        brandOf(node["brand"]),
		Availability: product.AvailabilityUnknown,
	}
	if md.Name == "" {
		if item, ok := node["itemOffered"].(map[string]any); ok {
			md.Name = stringField(item, "name")
		}
	}

	var offers []map[string]any
	if isOffer(node) {
		offers = append(offers, node)
	}
	switch o := node["offers"].(type) {
	case map[string]any:
		offers = append(offers, o)
	case []any:
		for _, item := range o {
			if m, ok := item.(map[string]any); ok {
				offers = append(offers, m)
			}
		}
	}

	for _, o := range offers {
		md.OnlinePrice = appendSignal(md.OnlinePrice, o["price"])
		md.OnlinePrice = appendSignal(md.OnlinePrice, o["lowPrice"])

		md.RegularPrice = appendSignal(md.RegularPrice, o["listPrice"])
		if spec, ok := o["priceSpecification"].(map[string]any); ok {
			md.RegularPrice = appendSignal(md.RegularPrice, spec["price"])
		}
		md.RegularPrice = appendSignal(md.RegularPrice, o["highPrice"])

		if md.Availability == product.AvailabilityUnknown {
			md.Availability = availabilityOf(stringField(o, "availability"))
		}
	}
	return md
}

func isOffer(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == "Offer" || t == "AggregateOffer"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && (s == "Offer" || s == "AggregateOffer") {
				return true
			}
		}
	}
	return false
}

// appendSignal adds v as a Known price when it is numeric, or as Text when it
// is a string that does not parse as a plain number.
func appendSignal(signals []price.Signal, v any) []price.Signal {
	switch t := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			return append(signals, price.Known(d))
		}
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return signals
		}
		if d, err := decimal.NewFromString(t); err == nil {
			return append(signals, price.Known(d))
		}
		return append(signals, price.Text(t))
	}
	return signals
}

func brandOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return stringField(t, "name")
	case []any:
		for _, item := range t {
			if b := brandOf(item); b != "" {
				return b
			}
		}
	}
	return ""
}

func availabilityOf(s string) product.Availability {
	switch {
	case s == "":
		return product.AvailabilityUnknown
	case strings.HasSuffix(s, "InStock"), strings.HasSuffix(s, "LimitedAvailability"),
		strings.HasSuffix(s, "OnlineOnly"), strings.HasSuffix(s, "InStoreOnly"):
		return product.AvailabilityInStock
	case strings.HasSuffix(s, "OutOfStock"), strings.HasSuffix(s, "SoldOut"),
		strings.HasSuffix(s, "Discontinued"):
		return product.AvailabilityOutOfStock
	}
	return product.AvailabilityUnknown
}

func stringField(m map[string]any, key string) string {
	switch t := m[key].(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
