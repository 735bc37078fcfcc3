package search

import (
	"context"
	"log"

	"renoquote/api/internal/quote"
)

// QuoteFinder is the database fallback used when Meilisearch is down.
type QuoteFinder interface {
	SearchQuotes(ctx context.Context, text string, limit int) ([]quote.Quote, error)
}

// Service is the facade that tries Meilisearch first and falls back to an
// ILIKE scan in PostgreSQL.
type Service struct {
	meili *Meili
	db    QuoteFinder
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, db QuoteFinder) *Service {
	return &Service{meili: meili, db: db}
}

// Search tries Meilisearch if healthy, otherwise falls back to the database.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to db: %v", err)
	}

	quotes, err := s.db.SearchQuotes(ctx, q.Text, q.Limit)
	if err != nil {
		log.Printf("search: db fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	results := make([]Result, 0, len(quotes))
	for _, qt := range quotes {
		if q.ContractorID != "" && qt.ContractorID != q.ContractorID {
			continue
		}
		if q.Status != "" && string(qt.Status) != q.Status {
			continue
		}
		results = append(results, Result{
			ID:                 qt.ID,
			CustomerName:       qt.CustomerName,
			CustomerAddress:    qt.CustomerAddress,
			ProjectDescription: qt.ProjectDescription,
			Status:             string(qt.Status),
			Version:            qt.Version,
			TotalAmount:        qt.TotalAmount,
		})
	}
	return Response{Results: results, Total: len(results), Query: q.Text}
}

// IndexQuote pushes a quote into Meilisearch (fire-and-forget).
func (s *Service) IndexQuote(q quote.Quote) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := QuoteRecord{
		ID:                 q.ID,
		ContractorID:       q.ContractorID,
		CustomerName:       q.CustomerName,
		CustomerAddress:    q.CustomerAddress,
		ProjectDescription: q.ProjectDescription,
		Status:             string(q.Status),
		Version:            q.Version,
		TotalAmount:        q.TotalAmount,
	}
	go func() {
		if err := s.meili.IndexQuote(rec); err != nil {
			log.Printf("search: index quote %s: %v", rec.ID, err)
		}
	}()
}

// DeleteQuote removes a quote from the search index (fire-and-forget).
func (s *Service) DeleteQuote(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteQuote(id); err != nil {
			log.Printf("search: delete quote %s: %v", id, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
