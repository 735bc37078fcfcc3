// Package parser turns free-form transcripts into typed edit commands and
// first-draft quote extractions. Two implementations exist: an OpenAI-backed
// one and a deterministic keyword fallback, selected by configuration.
package parser

import (
	"context"

	"renoquote/api/internal/quote"
)

// CommandParser converts a transcript plus a snapshot of the current ledger
// into edit commands. Implementations fail soft: on any upstream error they
// return an empty list so the caller can reply "didn't understand" instead
// of surfacing a transport error.
type CommandParser interface {
	Parse(ctx context.Context, transcript string, items []quote.Item) []quote.EditCommand
}

// Extraction is the first-draft output of the voice-to-quote pipeline:
// whole items plus whatever customer/project metadata the transcript held.
type Extraction struct {
	Items              []quote.Item `json:"items"`
	CustomerName       string       `json:"customerName"`
	CustomerPhone      string       `json:"customerPhone"`
	CustomerAddress    string       `json:"customerAddress"`
	CustomerEmail      string       `json:"customerEmail"`
	ProjectDescription string       `json:"projectDescription"`
	Confidence         float64      `json:"confidence"`
}

// Extractor produces an initial quote draft from a transcript. Same
// fail-soft contract: an empty Items slice means nothing billable was found.
type Extractor interface {
	Extract(ctx context.Context, transcript string) Extraction
}

// Transcriber turns an inbound voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}
