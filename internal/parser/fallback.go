package parser

import (
	"context"
	"strconv"
	"strings"

	"renoquote/api/internal/quote"
)

const fallbackConfidence = 0.8

// catalogEntry is a known trade phrase with its list price. The fallback
// parser only recognizes these for add_item; recall is intentionally low,
// the point is determinism for tests and for running without an API key.
type catalogEntry struct {
	phrase      string
	description string
	unitPrice   float64
	category    string
}

var fallbackCatalog = []catalogEntry{
	{"shut-off valve", "Shut-off Valve Replacement", 85, quote.CategoryRepairs},
	{"shutoff valve", "Shut-off Valve Replacement", 85, quote.CategoryRepairs},
	{"garbage disposal", "Garbage Disposal Install", 250, quote.CategoryFixtures},
	{"p-trap", "P-Trap Replacement", 45, quote.CategoryRepairs},
	{"wax ring", "Toilet Wax Ring Replacement", 35, quote.CategoryRepairs},
	{"water heater", "Water Heater Install", 1400, quote.CategoryFixtures},
	{"faucet", "Faucet Replacement", 175, quote.CategoryFixtures},
	{"haul away", "Debris Haul-away", 120, quote.CategoryLabor},
}

// Fallback is the deterministic keyword parser. It never errs and never
// calls out.
type Fallback struct{}

func NewFallback() *Fallback {
	return &Fallback{}
}

// Parse applies keyword heuristics: "percent"/"%" first so that "add 10
// percent" never becomes an add_item, then change/add/remove in that order.
func (f *Fallback) Parse(_ context.Context, transcript string, items []quote.Item) []quote.EditCommand {
	text := strings.ToLower(transcript)

	if strings.Contains(text, "percent") || strings.Contains(text, "%") {
		value, ok := firstNumber(text)
		if !ok {
			return nil
		}
		op := quote.BulkAddPercentage
		for _, w := range []string{"off", "discount", "reduce", "take", "less", "subtract"} {
			if strings.Contains(text, w) {
				op = quote.BulkSubtractPercentage
				break
			}
		}
		return []quote.EditCommand{{
			Type:       quote.CommandBulkChange,
			Operation:  op,
			Value:      value,
			Scope:      quote.ScopeAll,
			Confidence: fallbackConfidence,
		}}
	}

	if strings.Contains(text, "add") {
		for _, entry := range fallbackCatalog {
			if strings.Contains(text, entry.phrase) {
				return []quote.EditCommand{{
					Type:        quote.CommandAddItem,
					Description: entry.description,
					UnitPrice:   entry.unitPrice,
					Quantity:    1,
					Unit:        "each",
					Category:    entry.category,
					Confidence:  fallbackConfidence,
				}}
			}
		}
	}

	if strings.Contains(text, "remove") || strings.Contains(text, "delete") || strings.Contains(text, "take off") {
		if target := itemKeyword(text, items); target != "" {
			return []quote.EditCommand{{
				Type:       quote.CommandRemoveItem,
				Target:     target,
				Confidence: fallbackConfidence,
			}}
		}
	}

	if strings.Contains(text, "change") || strings.Contains(text, "make") || strings.Contains(text, "update") {
		target := itemKeyword(text, items)
		price, ok := firstNumber(text)
		if target != "" && ok {
			return []quote.EditCommand{{
				Type:       quote.CommandChangePrice,
				Target:     target,
				NewPrice:   price,
				Confidence: fallbackConfidence,
			}}
		}
	}

	return nil
}

// Extract recognizes only catalog phrases; anything else yields an empty
// extraction and the caller asks the contractor to be more specific.
func (f *Fallback) Extract(_ context.Context, transcript string) Extraction {
	text := strings.ToLower(transcript)

	var items []quote.Item
	seen := map[string]bool{}
	for _, entry := range fallbackCatalog {
		if !strings.Contains(text, entry.phrase) || seen[entry.description] {
			continue
		}
		seen[entry.description] = true
		item := quote.Item{
			Description:     entry.description,
			Quantity:        1,
			Unit:            "each",
			UnitPrice:       entry.unitPrice,
			Category:        entry.category,
			ConfidenceScore: fallbackConfidence,
		}
		item.Recalc()
		items = append(items, item)
	}

	return Extraction{
		Items:              items,
		ProjectDescription: strings.TrimSpace(transcript),
		Confidence:         fallbackConfidence,
	}
}

// itemKeyword returns the first word of an existing item description that
// appears in the transcript, which then serves as the matcher target.
func itemKeyword(text string, items []quote.Item) string {
	for _, it := range items {
		for _, word := range strings.Fields(strings.ToLower(it.Description)) {
			word = strings.Trim(word, ".,!?")
			if len(word) < 4 {
				continue
			}
			if strings.Contains(text, word) {
				return word
			}
		}
	}
	return ""
}

// firstNumber scans for the first numeric token, tolerating "$650" and
// "650.50" forms.
func firstNumber(text string) (float64, bool) {
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, "$%,.!?")
		if tok == "" {
			continue
		}
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
