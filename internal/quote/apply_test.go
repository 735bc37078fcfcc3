package quote

import (
	"reflect"
	"testing"
)

func bathroomItems() []Item {
	items := []Item{
		{Description: "Toilet Install", Quantity: 1, Unit: "each", UnitPrice: 450, Category: CategoryLabor, DisplayOrder: 0},
		{Description: "Vanity Replacement", Quantity: 1, Unit: "each", UnitPrice: 780, Category: CategoryFixtures, DisplayOrder: 1},
		{Description: "Copper Pipe", Quantity: 12, Unit: "ft", UnitPrice: 8.5, Category: CategoryMaterial, DisplayOrder: 2},
	}
	for i := range items {
		items[i].Recalc()
	}
	return items
}

func TestApplyChangePrice(t *testing.T) {
	items := []Item{{Description: "Toilet Install", Quantity: 1, Unit: "each", UnitPrice: 450}}
	items[0].Recalc()

	result := Apply(items, []EditCommand{
		{Type: CommandChangePrice, Target: "toilet", NewPrice: 650},
	})

	if len(result.Notes) != 0 {
		t.Fatalf("unexpected notes: %+v", result.Notes)
	}
	got := result.Items[0]
	if got.UnitPrice != 650 || got.TotalPrice != 650 {
		t.Errorf("expected unit 650 total 650, got unit %v total %v", got.UnitPrice, got.TotalPrice)
	}
	// input must not be mutated
	if items[0].UnitPrice != 450 {
		t.Errorf("input ledger mutated: %v", items[0].UnitPrice)
	}
}

func TestApplyAddItemAppendsAtEnd(t *testing.T) {
	items := bathroomItems()
	result := Apply(items, []EditCommand{
		{Type: CommandAddItem, Description: "Shut-off Valve Replacement", UnitPrice: 85, Quantity: 1},
	})

	if len(result.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(result.Items))
	}
	added := result.Items[3]
	if added.DisplayOrder != len(items) {
		t.Errorf("expected displayOrder %d, got %d", len(items), added.DisplayOrder)
	}
	if added.TotalPrice != 85 {
		t.Errorf("expected total 85, got %v", added.TotalPrice)
	}
	if added.Unit != "each" || added.Category != CategoryOther {
		t.Errorf("expected defaults, got unit %q category %q", added.Unit, added.Category)
	}
}

func TestApplyRemoveClosesGaps(t *testing.T) {
	result := Apply(bathroomItems(), []EditCommand{
		{Type: CommandRemoveItem, Target: "vanity"},
	})

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}
	for i, it := range result.Items {
		if it.DisplayOrder != i {
			t.Errorf("item %d has displayOrder %d", i, it.DisplayOrder)
		}
	}
}

func TestApplyBulkPercentage(t *testing.T) {
	result := Apply(bathroomItems(), []EditCommand{
		{Type: CommandBulkChange, Operation: BulkAddPercentage, Value: 10, Scope: ScopeAll},
	})

	wantUnit := []float64{495, 858, 9.35}
	for i, it := range result.Items {
		if it.UnitPrice != wantUnit[i] {
			t.Errorf("item %d: expected unit %v, got %v", i, wantUnit[i], it.UnitPrice)
		}
		if it.TotalPrice != Round2(it.Quantity*it.UnitPrice) {
			t.Errorf("item %d: total %v inconsistent with %v x %v", i, it.TotalPrice, it.Quantity, it.UnitPrice)
		}
	}
}

func TestApplyBulkCategoryScope(t *testing.T) {
	result := Apply(bathroomItems(), []EditCommand{
		{Type: CommandBulkChange, Operation: BulkSubtractPercentage, Value: 50, Scope: ScopeCategory, Category: CategoryMaterial},
	})

	if got := result.Items[2].UnitPrice; got != 4.25 {
		t.Errorf("expected material unit 4.25, got %v", got)
	}
	if got := result.Items[0].UnitPrice; got != 450 {
		t.Errorf("labor item should be untouched, got %v", got)
	}
}

func TestApplyNoMatchIsNoop(t *testing.T) {
	items := bathroomItems()
	result := Apply(items, []EditCommand{
		{Type: CommandChangePrice, Target: "skylight", NewPrice: 900},
		{Type: CommandRemoveItem, Target: "gutter"},
	})

	if !reflect.DeepEqual(result.Items, items) {
		t.Errorf("ledger changed on unmatched commands:\n got %+v\nwant %+v", result.Items, items)
	}
	if len(result.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(result.Notes))
	}
	for _, n := range result.Notes {
		if n.Kind != NoteNoMatch {
			t.Errorf("expected no_match note, got %s", n.Kind)
		}
	}
}

func TestApplyAmbiguousTargetSkipsAndReports(t *testing.T) {
	items := bathroomItems()
	items = append(items, Item{Description: "Shower Valve", Quantity: 1, Unit: "each", UnitPrice: 120, DisplayOrder: 3})
	items = append(items, Item{Description: "Shut-off Valve", Quantity: 1, Unit: "each", UnitPrice: 85, DisplayOrder: 4})

	result := Apply(items, []EditCommand{
		{Type: CommandChangePrice, Target: "valve", NewPrice: 200},
	})

	if len(result.Notes) != 1 || result.Notes[0].Kind != NoteAmbiguous {
		t.Fatalf("expected one ambiguous note, got %+v", result.Notes)
	}
	if len(result.Notes[0].Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %v", result.Notes[0].Candidates)
	}
	if result.Items[3].UnitPrice != 120 || result.Items[4].UnitPrice != 85 {
		t.Errorf("ambiguous command must not change prices: %+v", result.Items[3:])
	}
	if q := result.Notes[0].ClarifyQuestion(); q == "" {
		t.Error("expected a clarifying question")
	}
}

func TestApplyDisplayOrderDense(t *testing.T) {
	result := Apply(bathroomItems(), []EditCommand{
		{Type: CommandRemoveItem, Target: "toilet"},
		{Type: CommandAddItem, Description: "Drywall Patch", UnitPrice: 150, Quantity: 1},
		{Type: CommandAddItem, Description: "Paint Touch-up", UnitPrice: 90, Quantity: 1},
	})

	seen := map[int]bool{}
	for i, it := range result.Items {
		if it.DisplayOrder != i {
			t.Errorf("expected dense order at %d, got %d", i, it.DisplayOrder)
		}
		if seen[it.DisplayOrder] {
			t.Errorf("duplicate displayOrder %d", it.DisplayOrder)
		}
		seen[it.DisplayOrder] = true
	}
}

func TestRound2AtStorage(t *testing.T) {
	items := []Item{{Description: "Tile", Quantity: 3, Unit: "box", UnitPrice: 33.333}}
	items[0].Recalc()

	result := Apply(items, []EditCommand{
		{Type: CommandBulkChange, Operation: BulkAddPercentage, Value: 7, Scope: ScopeAll},
	})

	it := result.Items[0]
	if it.UnitPrice != 35.67 {
		t.Errorf("expected rounded unit 35.67, got %v", it.UnitPrice)
	}
	if it.TotalPrice != Round2(it.Quantity*it.UnitPrice) {
		t.Errorf("total %v inconsistent after rounding", it.TotalPrice)
	}
}

func TestTotal(t *testing.T) {
	if got := Total(bathroomItems()); got != 1332 {
		t.Errorf("expected total 1332, got %v", got)
	}
	if got := Total(nil); got != 0 {
		t.Errorf("expected 0 for empty ledger, got %v", got)
	}
}
