package pdfgen

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"renoquote/api/internal/quote"
)

//go:embed templates/*.html
var templateFS embed.FS

var quoteTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
		"qty":   func(v float64) string { return fmt.Sprintf("%g", v) },
	}
	quoteTemplate = template.Must(
		template.New("quote.html").Funcs(funcMap).ParseFS(templateFS, "templates/quote.html"))
}

// CategoryTotal is one row of the cost summary.
type CategoryTotal struct {
	Category string
	Total    float64
}

// TemplateData feeds the quote layout.
type TemplateData struct {
	Quote          quote.Quote
	Items          []quote.Item
	CategoryTotals []CategoryTotal
	Total          float64
	GeneratedAt    time.Time
}

// RenderQuoteHTML renders the printable HTML for a quote version.
func RenderQuoteHTML(q quote.Quote, items []quote.Item) (string, error) {
	data := TemplateData{
		Quote:          q,
		Items:          items,
		CategoryTotals: categoryTotals(items),
		Total:          quote.Total(items),
		GeneratedAt:    time.Now().UTC(),
	}

	var buf bytes.Buffer
	if err := quoteTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render quote template: %w", err)
	}
	return buf.String(), nil
}

// categoryTotals groups line totals by category, preserving ledger order of
// first appearance.
func categoryTotals(items []quote.Item) []CategoryTotal {
	index := map[string]int{}
	var totals []CategoryTotal
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = quote.CategoryOther
		}
		i, ok := index[cat]
		if !ok {
			i = len(totals)
			index[cat] = i
			totals = append(totals, CategoryTotal{Category: cat})
		}
		totals[i].Total = quote.Round2(totals[i].Total + it.TotalPrice)
	}
	return totals
}
