package dto

// PersonSearchResult is one row in a prison-level listing.
type PersonSearchResult struct {
	PrisonNumber string  `json:"prison_number"`
	Status       string  `json:"status"`
	DeadlineDate *string `json:"deadline_date,omitempty"`
	HasNeed      bool    `json:"has_need"`
	InEducation  bool    `json:"in_education"`
}

// SearchResponse wraps a paginated prison-level listing.
type SearchResponse struct {
	Results  []PersonSearchResult `json:"results"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}
