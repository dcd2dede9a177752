package price

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseFragments(t *testing.T) {
	tests := []struct {
		name     string
		integer  string
		fraction string
		want     string
		ok       bool
	}{
		{"single digit fraction is hundredths", "12", "5", "12.05", true},
		{"two digit fraction", "12", "50", "12.50", true},
		{"zero fraction", "7", "00", "7.00", true},
		{"non digits stripped", "S/ 1 299", ",90", "1299.90", true},
		{"long fraction rounds half up", "3", "125", "3.13", true},
		{"missing fraction", "12", "", "0", false},
		{"missing integer", "", "99", "0", false},
		{"fraction without digits", "12", "--", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFragments(tt.integer, tt.fraction)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"S/ 1.234,56", "1234.56", true},
		{"US$ 19.90", "19.90", true},
		{"S/. 8.5", "8.50", true},
		{"1,234", "1234", true},
		{"Precio S/ 12.90 antes S/ 15.00", "12.90", true},
		{"12.345", "12.35", true},
		{"sin precio", "0", false},
		{"", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseText(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestReconcilePrecedence(t *testing.T) {
	known := Known(dec("10.999"))
	frag := Fragments("12", "5")
	text := Text("S/ 15,00")

	assert.Equal(t, "11", Reconcile(text, frag, known).String())
	assert.Equal(t, "12.05", Reconcile(text, frag).String())
	assert.Equal(t, "1500", Reconcile(text).String())
}

func TestReconcileFallsThrough(t *testing.T) {
	// a half-rendered widget yields nothing, so free text wins
	got := Reconcile(Fragments("12", ""), Text("9.90"))
	assert.True(t, dec("9.90").Equal(got))

	// zero structured prices are treated as missing
	got = Reconcile(Known(decimal.Zero), Fragments("4", "20"))
	assert.True(t, dec("4.20").Equal(got))
}

func TestReconcileNothing(t *testing.T) {
	assert.True(t, Reconcile().IsZero())
	assert.True(t, Reconcile(Absent(), Text("agotado")).IsZero())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "fragments", Fragments("1", "2").Kind().String())
	assert.Equal(t, "absent", Absent().Kind().String())
}
