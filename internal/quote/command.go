package quote

import (
	"encoding/json"
	"strings"
)

// CommandType discriminates the EditCommand union.
type CommandType string

const (
	CommandChangePrice CommandType = "change_price"
	CommandAddItem     CommandType = "add_item"
	CommandRemoveItem  CommandType = "remove_item"
	CommandBulkChange  CommandType = "bulk_change"
)

// Bulk operations.
const (
	BulkAddPercentage      = "add_percentage"
	BulkSubtractPercentage = "subtract_percentage"
	BulkSetFlat            = "set_flat"
)

// Bulk scopes. ScopeCategory requires Category to be set.
const (
	ScopeAll      = "all"
	ScopeCategory = "category"
)

// EditCommand is one typed instruction derived from free-form speech.
// Target is a keyword matched against item descriptions, not an ID; the
// matcher resolves it and reports ambiguity instead of silently picking
// the first hit.
type EditCommand struct {
	Type CommandType `json:"type"`

	// change_price / remove_item
	Target   string  `json:"target,omitempty"`
	NewPrice float64 `json:"newPrice,omitempty"`

	// add_item
	Description string  `json:"description,omitempty"`
	UnitPrice   float64 `json:"unitPrice,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Category    string  `json:"category,omitempty"`

	// bulk_change
	Operation string  `json:"operation,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Scope     string  `json:"scope,omitempty"`

	Confidence float64 `json:"confidence,omitempty"`
}

// Valid reports whether the command carries enough fields to be applied.
// Malformed commands from the parser are dropped, never fatal.
func (c EditCommand) Valid() bool {
	switch c.Type {
	case CommandChangePrice:
		return strings.TrimSpace(c.Target) != "" && c.NewPrice >= 0
	case CommandAddItem:
		return strings.TrimSpace(c.Description) != "" && c.UnitPrice >= 0
	case CommandRemoveItem:
		return strings.TrimSpace(c.Target) != ""
	case CommandBulkChange:
		switch c.Operation {
		case BulkAddPercentage, BulkSubtractPercentage:
			return c.Value > 0
		case BulkSetFlat:
			return c.Value >= 0
		}
		return false
	}
	return false
}

// DecodeCommands parses a JSON array of edit commands, dropping entries that
// are malformed or incomplete. A top-level object with a "commands" key is
// accepted too, since models wrap arrays that way under json_object mode.
func DecodeCommands(raw []byte) []EditCommand {
	var cmds []EditCommand
	if err := json.Unmarshal(raw, &cmds); err != nil {
		var wrapper struct {
			Commands []EditCommand `json:"commands"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil
		}
		cmds = wrapper.Commands
	}

	valid := make([]EditCommand, 0, len(cmds))
	for _, c := range cmds {
		c.Type = CommandType(strings.ToLower(strings.TrimSpace(string(c.Type))))
		if c.Type == CommandAddItem && c.Quantity <= 0 {
			c.Quantity = 1
		}
		if c.Type == CommandBulkChange && c.Scope == "" {
			c.Scope = ScopeAll
		}
		if c.Valid() {
			valid = append(valid, c)
		}
	}
	return valid
}

// AverageConfidence is carried onto the audit record for a command batch.
func AverageConfidence(cmds []EditCommand) float64 {
	if len(cmds) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cmds {
		sum += c.Confidence
	}
	return sum / float64(len(cmds))
}

// EditType summarizes a batch for the audit row: the single command type,
// or "mixed" for heterogeneous batches.
func EditType(cmds []EditCommand) string {
	if len(cmds) == 0 {
		return ""
	}
	first := cmds[0].Type
	for _, c := range cmds[1:] {
		if c.Type != first {
			return "mixed"
		}
	}
	return string(first)
}
