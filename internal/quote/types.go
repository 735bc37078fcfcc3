// Package quote holds the quote domain model: the item ledger, typed edit
// commands, the pure applier, and the confirmation formatter.
package quote

import (
	"math"
	"time"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Item categories used for cost-summary grouping. The set is open: unknown
// categories pass through and group under their own heading.
const (
	CategoryLabor    = "labor"
	CategoryMaterial = "material"
	CategoryFixtures = "fixtures"
	CategoryRepairs  = "repairs"
	CategoryOther    = "other"
)

// Item is one billable line of a quote version.
type Item struct {
	ItemCode        string  `json:"itemCode,omitempty"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	UnitPrice       float64 `json:"unitPrice"`
	TotalPrice      float64 `json:"totalPrice"`
	Category        string  `json:"category"`
	DisplayOrder    int     `json:"displayOrder"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Quote is the document-level aggregate. Version is a monotonically
// increasing integer, one per regenerated PDF.
type Quote struct {
	ID                 string    `json:"id"`
	ContractorID       string    `json:"contractorId"`
	CustomerName       string    `json:"customerName"`
	CustomerPhone      string    `json:"customerPhone"`
	CustomerAddress    string    `json:"customerAddress"`
	CustomerEmail      string    `json:"customerEmail"`
	ProjectDescription string    `json:"projectDescription"`
	Status             Status    `json:"status"`
	Version            int       `json:"version"`
	TotalAmount        float64   `json:"totalAmount"`
	PDFURL             string    `json:"pdfUrl,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	SentAt             *time.Time `json:"sentAt,omitempty"`
}

// Edit is the immutable audit record for one confirmed edit batch.
// VersionTo is always VersionFrom+1.
type Edit struct {
	ID              int64         `json:"id"`
	QuoteID         string        `json:"quoteId"`
	VersionFrom     int           `json:"versionFrom"`
	VersionTo       int           `json:"versionTo"`
	EditType        string        `json:"editType"`
	RawCommands     []EditCommand `json:"rawCommands"`
	ConfidenceScore float64       `json:"confidenceScore"`
	CreatedAt       time.Time     `json:"createdAt"`
}

type SessionState string

const (
	StateReviewing  SessionState = "REVIEWING_QUOTE"
	StateConfirming SessionState = "CONFIRMING_CHANGES"
	StateFinalized  SessionState = "FINALIZED"
)

// ReviewSession tracks one quote under contractor review on a messaging
// thread. PendingChanges is non-empty only in CONFIRMING_CHANGES.
type ReviewSession struct {
	QuoteID        string        `json:"quoteId"`
	ContractorID   string        `json:"contractorId"`
	ThreadID       string        `json:"threadId"`
	State          SessionState  `json:"state"`
	PendingChanges []EditCommand `json:"pendingChanges,omitempty"`
	CurrentVersion int           `json:"currentVersion"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Round2 rounds a currency amount to 2 decimal places. All item math rounds
// at the point of storage so repeated edits cannot drift.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recalc enforces the line invariant totalPrice == round2(quantity * unitPrice).
func (it *Item) Recalc() {
	it.UnitPrice = Round2(it.UnitPrice)
	it.TotalPrice = Round2(it.Quantity * it.UnitPrice)
}

// Total sums the line totals of a ledger.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.TotalPrice
	}
	return Round2(sum)
}
