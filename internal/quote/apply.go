package quote

import (
	"fmt"
	"strings"
)

// NoteKind classifies per-command outcomes that did not change the ledger.
type NoteKind string

const (
	NoteNoMatch   NoteKind = "no_match"
	NoteAmbiguous NoteKind = "ambiguous"
)

// ApplyNote reports a skipped command. Ambiguous notes carry the candidate
// descriptions so the caller can ask which item was meant.
type ApplyNote struct {
	Kind       NoteKind
	Command    EditCommand
	Candidates []string
}

// ApplyResult is the output ledger plus notes for skipped commands.
type ApplyResult struct {
	Items []Item
	Notes []ApplyNote
}

// Apply runs commands against a ledger in parse order and returns a fresh
// list; the input is never mutated. Unmatched and ambiguous targets are
// skipped with a note. Display order is renumbered densely from 0.
func Apply(items []Item, commands []EditCommand) ApplyResult {
	out := make([]Item, len(items))
	copy(out, items)

	var notes []ApplyNote
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandChangePrice:
			match := MatchTarget(out, cmd.Target)
			switch match.Kind {
			case UniqueMatch:
				out[match.Index].UnitPrice = cmd.NewPrice
				out[match.Index].Recalc()
			case AmbiguousMatch:
				notes = append(notes, ambiguousNote(out, cmd, match))
			default:
				notes = append(notes, ApplyNote{Kind: NoteNoMatch, Command: cmd})
			}

		case CommandAddItem:
			item := Item{
				Description:     strings.TrimSpace(cmd.Description),
				Quantity:        cmd.Quantity,
				Unit:            cmd.Unit,
				UnitPrice:       cmd.UnitPrice,
				Category:        cmd.Category,
				ConfidenceScore: cmd.Confidence,
			}
			if item.Quantity <= 0 {
				item.Quantity = 1
			}
			if item.Unit == "" {
				item.Unit = "each"
			}
			if item.Category == "" {
				item.Category = CategoryOther
			}
			item.Recalc()
			out = append(out, item)

		case CommandRemoveItem:
			match := MatchTarget(out, cmd.Target)
			switch match.Kind {
			case UniqueMatch:
				out = append(out[:match.Index], out[match.Index+1:]...)
			case AmbiguousMatch:
				notes = append(notes, ambiguousNote(out, cmd, match))
			default:
				notes = append(notes, ApplyNote{Kind: NoteNoMatch, Command: cmd})
			}

		case CommandBulkChange:
			for i := range out {
				if cmd.Scope == ScopeCategory && !strings.EqualFold(out[i].Category, cmd.Category) {
					continue
				}
				switch cmd.Operation {
				case BulkAddPercentage:
					out[i].UnitPrice *= 1 + cmd.Value/100
				case BulkSubtractPercentage:
					out[i].UnitPrice *= 1 - cmd.Value/100
				case BulkSetFlat:
					out[i].UnitPrice = cmd.Value
				}
				out[i].Recalc()
			}
		}
	}

	for i := range out {
		out[i].DisplayOrder = i
	}
	return ApplyResult{Items: out, Notes: notes}
}

func ambiguousNote(items []Item, cmd EditCommand, match MatchResult) ApplyNote {
	note := ApplyNote{Kind: NoteAmbiguous, Command: cmd}
	for _, idx := range match.Candidates {
		note.Candidates = append(note.Candidates, items[idx].Description)
	}
	return note
}

// ClarifyQuestion renders the question asked when a target matched more than
// one item.
func (n ApplyNote) ClarifyQuestion() string {
	if n.Kind != NoteAmbiguous {
		return ""
	}
	return fmt.Sprintf("%q matches more than one item (%s) - which one did you mean?",
		n.Command.Target, strings.Join(n.Candidates, ", "))
}
