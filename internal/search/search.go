package search

// Result is a single quote hit returned to the caller.
type Result struct {
	ID                 string  `json:"id"`
	CustomerName       string  `json:"customerName"`
	CustomerAddress    string  `json:"customerAddress"`
	ProjectDescription string  `json:"projectDescription"`
	Status             string  `json:"status"`
	Version            int     `json:"version"`
	TotalAmount        float64 `json:"totalAmount"`
}

// Query describes a search request.
type Query struct {
	Text         string
	ContractorID string // empty = all contractors
	Status       string // empty = all statuses
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// QuoteRecord is the data we index for a quote.
type QuoteRecord struct {
	ID                 string  `json:"id"`
	ContractorID       string  `json:"contractorId"`
	CustomerName       string  `json:"customerName"`
	CustomerAddress    string  `json:"customerAddress"`
	ProjectDescription string  `json:"projectDescription"`
	Status             string  `json:"status"`
	Version            int     `json:"version"`
	TotalAmount        float64 `json:"totalAmount"`
}
