package pdfgen

import (
	"strings"
	"testing"

	"renoquote/api/internal/quote"
)

func testQuote() (quote.Quote, []quote.Item) {
	q := quote.Quote{
		ID:                 "qt_abc123",
		CustomerName:       "Dana Whitfield",
		CustomerAddress:    "14 Alder Court",
		ProjectDescription: "Guest bathroom refresh",
		Version:            3,
	}
	items := []quote.Item{
		{Description: "Toilet Install", Quantity: 1, Unit: "each", UnitPrice: 650, Category: quote.CategoryLabor},
		{Description: "Copper Pipe", Quantity: 12, Unit: "ft", UnitPrice: 8.5, Category: quote.CategoryMaterial},
		{Description: "Shut-off Valve Replacement", Quantity: 1, Unit: "each", UnitPrice: 85, Category: quote.CategoryRepairs},
	}
	for i := range items {
		items[i].Recalc()
	}
	return q, items
}

func TestRenderQuoteHTML(t *testing.T) {
	q, items := testQuote()
	html, err := RenderQuoteHTML(q, items)
	if err != nil {
		t.Fatalf("RenderQuoteHTML() error = %v", err)
	}

	for _, want := range []string{
		"qt_abc123",
		"Version 3",
		"Dana Whitfield",
		"Toilet Install",
		"$650.00",
		"$102.00",  // 12 x 8.50
		"$837.00",  // grand total
		"labor",    // category summary rows
		"material",
		"repairs",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestCategoryTotals(t *testing.T) {
	_, items := testQuote()
	items = append(items, quote.Item{Description: "Demo Labor", Quantity: 4, Unit: "hour", UnitPrice: 95, Category: quote.CategoryLabor, TotalPrice: 380})

	totals := categoryTotals(items)
	if len(totals) != 3 {
		t.Fatalf("expected 3 categories, got %+v", totals)
	}
	if totals[0].Category != quote.CategoryLabor || totals[0].Total != 1030 {
		t.Errorf("labor total = %+v", totals[0])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"qt_abc123-v3", "qt_abc123-v3"},
		{"Quote for Dana!", "Quote-for-Dana"},
		{"", "quote"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"a+b", "a%2Bb"},
		{"plain-text.txt", "plain-text.txt"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := percentEncodeForDataURL(tt.input); got != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
