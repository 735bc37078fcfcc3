package parser

import (
	"context"
	"testing"

	"renoquote/api/internal/quote"
)

func ledger() []quote.Item {
	items := []quote.Item{
		{Description: "Toilet Install", Quantity: 1, Unit: "each", UnitPrice: 450, Category: quote.CategoryLabor},
		{Description: "Vanity Replacement", Quantity: 1, Unit: "each", UnitPrice: 780, Category: quote.CategoryFixtures},
	}
	for i := range items {
		items[i].Recalc()
	}
	return items
}

func TestFallbackParseChangePrice(t *testing.T) {
	p := NewFallback()
	cmds := p.Parse(context.Background(), "change the toilet install to 650", ledger())

	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Type != quote.CommandChangePrice {
		t.Errorf("type = %q", cmd.Type)
	}
	if cmd.Target != "toilet" {
		t.Errorf("target = %q, want toilet", cmd.Target)
	}
	if cmd.NewPrice != 650 {
		t.Errorf("newPrice = %v, want 650", cmd.NewPrice)
	}
}

func TestFallbackParseAddFromCatalog(t *testing.T) {
	p := NewFallback()
	cmds := p.Parse(context.Background(), "add a shut-off valve for 85", ledger())

	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Type != quote.CommandAddItem {
		t.Errorf("type = %q", cmd.Type)
	}
	if cmd.Description != "Shut-off Valve Replacement" {
		t.Errorf("description = %q", cmd.Description)
	}
	if cmd.UnitPrice != 85 {
		t.Errorf("unitPrice = %v, want 85", cmd.UnitPrice)
	}
}

func TestFallbackParseBulkPercentage(t *testing.T) {
	p := NewFallback()

	cmds := p.Parse(context.Background(), "add 10 percent to everything for rush job", ledger())
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Type != quote.CommandBulkChange || cmd.Operation != quote.BulkAddPercentage {
		t.Errorf("unexpected command: %+v", cmd)
	}
	if cmd.Value != 10 || cmd.Scope != quote.ScopeAll {
		t.Errorf("value/scope = %v/%q", cmd.Value, cmd.Scope)
	}

	cmds = p.Parse(context.Background(), "take 15% off for the neighbor discount", ledger())
	if len(cmds) != 1 || cmds[0].Operation != quote.BulkSubtractPercentage {
		t.Errorf("expected subtract_percentage, got %+v", cmds)
	}
}

func TestFallbackParseRemove(t *testing.T) {
	p := NewFallback()
	cmds := p.Parse(context.Background(), "actually remove the vanity", ledger())

	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Type != quote.CommandRemoveItem || cmds[0].Target != "vanity" {
		t.Errorf("unexpected command: %+v", cmds[0])
	}
}

func TestFallbackParseUnrecognized(t *testing.T) {
	p := NewFallback()
	tests := []string{
		"how is the weather today",
		"change the skylight to 900",
		"add a gold-plated bidet for 5000",
		"",
	}
	for _, transcript := range tests {
		if cmds := p.Parse(context.Background(), transcript, ledger()); len(cmds) != 0 {
			t.Errorf("Parse(%q) = %+v, want none", transcript, cmds)
		}
	}
}

func TestFallbackExtract(t *testing.T) {
	p := NewFallback()
	ex := p.Extract(context.Background(), "new job: water heater swap plus a faucet and haul away the old unit")

	if len(ex.Items) != 3 {
		t.Fatalf("expected 3 items, got %+v", ex.Items)
	}
	for _, it := range ex.Items {
		if it.TotalPrice != quote.Round2(it.Quantity*it.UnitPrice) {
			t.Errorf("item %q total inconsistent", it.Description)
		}
	}
}

func TestFallbackExtractNothingBillable(t *testing.T) {
	p := NewFallback()
	ex := p.Extract(context.Background(), "give me a call when you get a chance")
	if len(ex.Items) != 0 {
		t.Errorf("expected empty extraction, got %+v", ex.Items)
	}
}
