package quote

import "testing"

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"array form", `[{"type":"change_price","target":"toilet","newPrice":650}]`, 1},
		{"wrapper object", `{"commands":[{"type":"remove_item","target":"vanity"}]}`, 1},
		{"malformed json", `{"commands": [`, 0},
		{"not json at all", `sure, here are the commands you asked for`, 0},
		{"unknown type dropped", `[{"type":"repaint_house","target":"x"}]`, 0},
		{"missing target dropped", `[{"type":"change_price","newPrice":10}]`, 0},
		{"mixed valid and invalid", `[{"type":"change_price","target":"toilet","newPrice":650},{"type":"bulk_change"}]`, 1},
		{"empty array", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeCommands([]byte(tt.raw))
			if len(got) != tt.want {
				t.Errorf("DecodeCommands(%s) = %d commands, want %d", tt.raw, len(got), tt.want)
			}
		})
	}
}

func TestDecodeCommandsDefaults(t *testing.T) {
	cmds := DecodeCommands([]byte(`[{"type":"ADD_ITEM","description":"Shut-off Valve","unitPrice":85}]`))
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Type != CommandAddItem {
		t.Errorf("type not normalized: %q", cmds[0].Type)
	}
	if cmds[0].Quantity != 1 {
		t.Errorf("expected default quantity 1, got %v", cmds[0].Quantity)
	}

	cmds = DecodeCommands([]byte(`[{"type":"bulk_change","operation":"add_percentage","value":10}]`))
	if len(cmds) != 1 || cmds[0].Scope != ScopeAll {
		t.Errorf("expected default scope all, got %+v", cmds)
	}
}

func TestEditTypeAndConfidence(t *testing.T) {
	cmds := []EditCommand{
		{Type: CommandChangePrice, Confidence: 0.9},
		{Type: CommandChangePrice, Confidence: 0.7},
	}
	if got := EditType(cmds); got != "change_price" {
		t.Errorf("EditType = %q", got)
	}
	if got := AverageConfidence(cmds); got != 0.8 {
		t.Errorf("AverageConfidence = %v", got)
	}

	cmds = append(cmds, EditCommand{Type: CommandAddItem})
	if got := EditType(cmds); got != "mixed" {
		t.Errorf("EditType = %q, want mixed", got)
	}
	if got := EditType(nil); got != "" {
		t.Errorf("EditType(nil) = %q", got)
	}
}
