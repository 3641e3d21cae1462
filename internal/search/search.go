package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultDraft   ResultType = "draft"
	ResultComment ResultType = "comment"
)

// Result is a single search hit. DraftID always points at the draft the
// hit belongs to, so the caller can filter hits through the access policy
// before returning them.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	DraftID string     `json:"draftId"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned to the caller.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// DraftRecord is the data indexed for a draft.
type DraftRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// CommentRecord is the data indexed for a workspace comment.
type CommentRecord struct {
	ID        string `json:"id"`
	DraftID   string `json:"draftId"`
	Body      string `json:"body"`
	Placement string `json:"placement"`
	AuthorID  string `json:"authorId"`
}
