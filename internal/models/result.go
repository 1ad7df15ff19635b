package models

// Hit is one retrieved chunk with its distance to the query.
// Smaller distance means more similar.
type Hit struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Distance float64 `json:"distance"`
}

// RetrievalResult is the ordered answer to a query, nearest first.
type RetrievalResult struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k"`
	Hits      []Hit  `json:"hits"`
	QueryTime int64  `json:"query_time_ms"`
}

// Answer is a generated response grounded on retrieved snippets.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Snippets []Hit  `json:"snippets"`
	Model    string `json:"model"`
}
