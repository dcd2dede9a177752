package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectFirst returns the trimmed text of the first element matched by the
// first selector in selectors that yields non-empty text.
func SelectFirst(sel *goquery.Selection, selectors []string) (string, bool) {
	for _, s := range selectors {
		var text string
		sel.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text = strings.TrimSpace(el.Text())
			return text == ""
		})
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// SelectFirstAttr returns the first non-empty value of any of attrs on an
// element matched by selectors, trying selectors in order.
func SelectFirstAttr(sel *goquery.Selection, selectors, attrs []string) (string, bool) {
	for _, s := range selectors {
		var value string
		sel.Find(s).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			value = firstAttr(el, attrs)
			return value == ""
		})
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// OwnAttr looks at sel itself rather than its descendants.
func OwnAttr(sel *goquery.Selection, attrs []string) (string, bool) {
	v := firstAttr(sel, attrs)
	return v, v != ""
}

func firstAttr(sel *goquery.Selection, attrs []string) string {
	for _, a := range attrs {
		if v, ok := sel.Attr(a); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
