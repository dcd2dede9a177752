package price

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags which source a Signal came from.
type Kind int

const (
	KindAbsent Kind = iota
	KindKnown
	KindFragments
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindKnown:
		return "known"
	case KindFragments:
		return "fragments"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// precedence is the order in which Reconcile consults signal kinds.
var precedence = []Kind{KindKnown, KindFragments, KindText}

// Signal is one price observation: an already-numeric value from structured
// markup, an integer/fraction pair from a split price widget, or free text.
type Signal struct {
	kind     Kind
	value    decimal.Decimal
	integer  string
	fraction string
	text     string
}

func Known(d decimal.Decimal) Signal {
	return Signal{kind: KindKnown, value: d}
}

func Fragments(integer, fraction string) Signal {
	return Signal{kind: KindFragments, integer: integer, fraction: fraction}
}

func Text(s string) Signal {
	return Signal{kind: KindText, text: s}
}

func Absent() Signal {
	return Signal{}
}

func (s Signal) Kind() Kind {
	return s.kind
}

// Value resolves the signal on its own. ok is false when the signal does not
// yield a positive price.
func (s Signal) Value() (decimal.Decimal, bool) {
	var (
		d  decimal.Decimal
		ok bool
	)
	switch s.kind {
	case KindKnown:
		d, ok = s.value, true
	case KindFragments:
		d, ok = ParseFragments(s.integer, s.fraction)
	case KindText:
		d, ok = ParseText(s.text)
	}
	if !ok || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// Reconcile returns the price of the highest-precedence signal that yields
// one: structured values first, then split fragments, then free text. The
// argument order does not matter. Zero means no source produced a price.
func Reconcile(signals ...Signal) decimal.Decimal {
	for _, k := range precedence {
		for _, s := range signals {
			if s.kind != k {
				continue
			}
			if d, ok := s.Value(); ok {
				return d
			}
		}
	}
	return decimal.Zero
}

var nonDigit = regexp.MustCompile(`\D`)

// ParseFragments joins an integer part and a hundredths part, e.g. ("12", "5")
// is 12.05. Both parts must contain at least one digit.
func ParseFragments(integer, fraction string) (decimal.Decimal, bool) {
	i := nonDigit.ReplaceAllString(integer, "")
	f := nonDigit.ReplaceAllString(fraction, "")
	if i == "" || f == "" {
		return decimal.Zero, false
	}

	// the fraction is read as an integer count of hundredths
	fn, err := strconv.ParseUint(f, 10, 64)
	if err != nil {
		return decimal.Zero, false
	}
	padded := strconv.FormatUint(fn, 10)
	if len(padded) < 2 {
		padded = "0" + padded
	}

	d, err := decimal.NewFromString(i + "." + padded)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

var (
	currencyMarkers = strings.NewReplacer("S/.", "", "S/", "", "US$", "", "$", "", "€", "", "£", "", "PEN", "", "USD", "")
	numericToken    = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseText reads the first number out of a human formatted price such as
// "S/ 1.234,56". When both separators occur the later one is the decimal
// point; a lone comma is a thousands separator.
func ParseText(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(currencyMarkers.Replace(s))
	if s == "" {
		return decimal.Zero, false
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	tok := numericToken.FindString(s)
	if tok == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}
