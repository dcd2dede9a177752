package ledger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniass/shelf-dealz/pkg/product"
)

func newTestLedger() (*Ledger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(logrus.NewEntry(logger)), hook
}

func TestAcceptFirstWins(t *testing.T) {
	l, _ := newTestLedger()

	first := product.Record{Name: "Leche Gloria 1L", SKU: "123", Hash: "h1", URL: "https://a/p"}
	second := product.Record{Name: "Leche Gloria 1L", SKU: "123", Hash: "h1", URL: "https://b/p"}

	assert.True(t, l.Accept(first))
	assert.False(t, l.Accept(second))
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.Duplicates())

	records, discards := l.Finalize(0)
	require.Len(t, records, 1)
	assert.Equal(t, "https://a/p", records[0].URL)
	assert.Empty(t, discards, "duplicates are not discards")
}

func TestAcceptRefusesEmptyName(t *testing.T) {
	l, _ := newTestLedger()

	assert.False(t, l.Accept(product.Record{Name: "  ", SKU: "1", Hash: "x"}))
	assert.False(t, l.Accept(product.Record{SKU: "1", Hash: "y"}))
	assert.Equal(t, 0, l.Len())
}

func TestRejectIsAppendOnly(t *testing.T) {
	l, _ := newTestLedger()

	l.Reject("https://a/x", product.ReasonNotProduct, "")
	l.Reject("https://a/x", product.ReasonNotProduct, "")

	_, discards := l.Finalize(0)
	assert.Len(t, discards, 2)
	assert.Equal(t, 2, l.Discards())
}

func TestFinalizeWarnsBelowMinimum(t *testing.T) {
	l, hook := newTestLedger()
	l.Accept(product.Record{Name: "A", Hash: "a"})

	records, _ := l.Finalize(100)
	assert.Len(t, records, 1)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// returned slices are copies
	records[0].Name = "changed"
	again, _ := l.Finalize(0)
	assert.Equal(t, "A", again[0].Name)
}
