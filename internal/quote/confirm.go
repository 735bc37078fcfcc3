package quote

import (
	"fmt"
	"strings"
)

// FormatConfirmation renders a pending command batch into the message the
// contractor approves before anything is persisted. Pure; used for both the
// outbound reply and logging.
func FormatConfirmation(commands []EditCommand, items []Item) string {
	if len(commands) == 0 {
		return "No changes found in that message. Tell me what to change, for example \"change the toilet install to 650\"."
	}

	parts := make([]string, 0, len(commands))
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandChangePrice:
			label := cmd.Target
			if match := MatchTarget(items, cmd.Target); match.Kind == UniqueMatch {
				label = items[match.Index].Description
			}
			parts = append(parts, fmt.Sprintf("change %s to %s", label, money(cmd.NewPrice)))
		case CommandAddItem:
			qty := ""
			if cmd.Quantity > 1 {
				qty = fmt.Sprintf("%gx ", cmd.Quantity)
			}
			parts = append(parts, fmt.Sprintf("add %s%s at %s", qty, cmd.Description, money(cmd.UnitPrice)))
		case CommandRemoveItem:
			label := cmd.Target
			if match := MatchTarget(items, cmd.Target); match.Kind == UniqueMatch {
				label = items[match.Index].Description
			}
			parts = append(parts, fmt.Sprintf("remove %s", label))
		case CommandBulkChange:
			scope := "all items"
			if cmd.Scope == ScopeCategory {
				scope = cmd.Category + " items"
			}
			switch cmd.Operation {
			case BulkAddPercentage:
				parts = append(parts, fmt.Sprintf("add %g%% to %s", cmd.Value, scope))
			case BulkSubtractPercentage:
				parts = append(parts, fmt.Sprintf("take %g%% off %s", cmd.Value, scope))
			case BulkSetFlat:
				parts = append(parts, fmt.Sprintf("set %s to %s", scope, money(cmd.Value)))
			}
		}
	}

	preview := Apply(items, commands)
	return fmt.Sprintf("Got it: %s. New total would be %s. Reply yes to confirm.",
		strings.Join(parts, ", "), money(Total(preview.Items)))
}

// FormatQuoteSummary renders the ledger for an outbound message after a
// version is regenerated or a draft is first created.
func FormatQuoteSummary(q Quote, items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quote for %s (v%d):\n", firstNonEmpty(q.CustomerName, q.ProjectDescription, q.ID), q.Version)
	for _, it := range items {
		fmt.Fprintf(&b, "- %s: %g %s x %s = %s\n", it.Description, it.Quantity, it.Unit, money(it.UnitPrice), money(it.TotalPrice))
	}
	fmt.Fprintf(&b, "Total: %s", money(Total(items)))
	return b.String()
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
