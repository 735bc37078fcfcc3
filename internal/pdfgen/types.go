// Package pdfgen renders a quote version into a PDF document via headless
// Chrome. Every render is a full document from the current item list, never
// a patch of the previous artifact.
package pdfgen

import "errors"

// Result contains the generated document.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrChromeMissing indicates the headless Chrome runtime is unavailable.
	ErrChromeMissing = errors.New("pdfgen chrome dependency missing")
)
