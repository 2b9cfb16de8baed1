package autodoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"work_order_number", []string{"work", "order", "number"}},
		{"Job Number", []string{"job", "number"}},
		{"customerName", []string{"customer", "name"}},
		{"PONumber", []string{"po", "number"}},
		{"address2", []string{"address", "2"}},
		{"client.billing-address", []string{"client", "billing", "address"}},
		{"Fäcture N°", []string{"facture", "n"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.in))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Line Items", "lineitem"},
		{"line_items", "lineitem"},
		{"address", "address"},
		{"Status", "status"},
		{"bus", "bus"},
		{"IDs", "id"},
		{"id", "id"},
		{"Scheduled Date", "scheduleddate"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeName(tt.in))
		})
	}
}

func TestNgrams(t *testing.T) {
	got := ngrams([]string{"work", "order", "number"})
	assert.ElementsMatch(t, []string{
		"work", "workorder", "workordernumber",
		"order", "ordernumber",
		"number",
	}, got)
}

func TestNewNameInfo(t *testing.T) {
	info := newNameInfo("Line Items")
	assert.Equal(t, "Line Items", info.raw)
	assert.Equal(t, "lineitems", info.joined)
	assert.Equal(t, "lineitem", info.norm)
	assert.Contains(t, info.grams, "lineitem")
	assert.Contains(t, info.grams, "item")
}
