package quote

import (
	"strings"
	"testing"
)

func TestFormatConfirmationEmpty(t *testing.T) {
	msg := FormatConfirmation(nil, bathroomItems())
	if !strings.Contains(msg, "No changes found") {
		t.Errorf("expected no-changes message, got %q", msg)
	}
}

func TestFormatConfirmation(t *testing.T) {
	items := bathroomItems()
	msg := FormatConfirmation([]EditCommand{
		{Type: CommandChangePrice, Target: "toilet", NewPrice: 650},
		{Type: CommandAddItem, Description: "Shut-off Valve Replacement", UnitPrice: 85, Quantity: 1},
	}, items)

	for _, want := range []string{"Toilet Install", "$650.00", "Shut-off Valve Replacement", "$85.00", "Reply yes to confirm"} {
		if !strings.Contains(msg, want) {
			t.Errorf("confirmation missing %q: %q", want, msg)
		}
	}
	// previewed total: 650 + 780 + 102 + 85
	if !strings.Contains(msg, "$1617.00") {
		t.Errorf("confirmation missing previewed total: %q", msg)
	}
}

func TestFormatConfirmationBulk(t *testing.T) {
	msg := FormatConfirmation([]EditCommand{
		{Type: CommandBulkChange, Operation: BulkAddPercentage, Value: 10, Scope: ScopeAll},
	}, bathroomItems())

	if !strings.Contains(msg, "add 10% to all items") {
		t.Errorf("unexpected bulk phrasing: %q", msg)
	}
}

func TestFormatQuoteSummary(t *testing.T) {
	q := Quote{ID: "qt_1", CustomerName: "Dana Whitfield", Version: 2}
	msg := FormatQuoteSummary(q, bathroomItems())

	for _, want := range []string{"Dana Whitfield", "v2", "Toilet Install", "Total: $1332.00"} {
		if !strings.Contains(msg, want) {
			t.Errorf("summary missing %q: %q", want, msg)
		}
	}
}
