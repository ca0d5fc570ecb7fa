package search

// Document is one search hit.
type Document struct {
	DocumentID   int64  `json:"documentId"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	ShortContent string `json:"shortContent"`
}

// Response is one page of search results.
type Response struct {
	Documents    []Document `json:"documents"`
	TotalResults int        `json:"totalResults"`
	TotalPages   int        `json:"totalPages"`
	CurrentPage  int        `json:"currentPage"`
	PageSize     int        `json:"pageSize"`
	// Cached is set when the page was served from the local cache.
	Cached bool `json:"cached,omitempty"`
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Documents = append([]Document(nil), r.Documents...)
	return &out
}

// Params selects a page of results. Zero values take the service defaults.
type Params struct {
	Query  string
	TopK   int
	Page   int
	Size   int
	UserID string
}

// Filters narrow a search.
type Filters struct {
	Tags []string
}

// Feedback marks a result relevant or not for a query.
type Feedback struct {
	UserID     string `json:"userId"`
	Query      string `json:"query"`
	DocumentID int64  `json:"documentId"`
	IsRelevant bool   `json:"isRelevant"`
}
