package mcp

import (
	"github.com/Aman-CERP/fuzzidx/internal/async"
)

// Tool names.
const (
	ToolFuzzySearch  = "fuzzy_search"
	ToolReindexOwner = "reindex_owner"
	ToolForgetOwner  = "forget_owner"
	ToolIndexStatus  = "index_status"
)

// SearchInput is the input of fuzzy_search.
type SearchInput struct {
	OwnerType string   `json:"owner_type" jsonschema:"owner type to search, e.g. User"`
	Field     string   `json:"field,omitempty" jsonschema:"field to search; empty searches every field of the owner type"`
	Query     string   `json:"query" jsonschema:"text to match approximately"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Offset    int      `json:"offset,omitempty" jsonschema:"number of results to skip"`
	Weighted  bool     `json:"weighted,omitempty" jsonschema:"weight trigrams by how often they occur in the query"`
	MinScore  float64  `json:"min_score,omitempty" jsonschema:"drop owners scoring below this value"`
	OwnerIDs  []string `json:"owner_ids,omitempty" jsonschema:"restrict results to these owner ids"`
}

// SearchOutput is the output of fuzzy_search.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked owners, best first"`
	// Partial is set while the initial reindex is still running.
	Partial bool `json:"partial,omitempty" jsonschema:"true while the index is still being built"`
}

// SearchResultOutput is one ranked owner.
type SearchResultOutput struct {
	OwnerID string  `json:"owner_id" jsonschema:"id of the matching owner"`
	Score   float64 `json:"score" jsonschema:"summed trigram score, higher is closer"`
	Matched int     `json:"matched" jsonschema:"number of the owner's index rows that matched a query trigram"`
}

// ReindexInput is the input of reindex_owner.
type ReindexInput struct {
	OwnerType string `json:"owner_type" jsonschema:"owner type, e.g. User"`
	Field     string `json:"field" jsonschema:"searchable field name"`
	OwnerID   string `json:"owner_id" jsonschema:"id of the owner whose value changed"`
	Text      string `json:"text" jsonschema:"new field value; empty removes the owner's rows"`
}

// ReindexOutput is the output of reindex_owner.
type ReindexOutput struct {
	Rows int `json:"rows" jsonschema:"trigram rows now stored for the owner field"`
}

// ForgetInput is the input of forget_owner.
type ForgetInput struct {
	OwnerType string `json:"owner_type" jsonschema:"owner type, e.g. User"`
	OwnerID   string `json:"owner_id" jsonschema:"id of the removed owner"`
	Field     string `json:"field,omitempty" jsonschema:"single field to forget; empty forgets every field"`
}

// ForgetOutput is the output of forget_owner.
type ForgetOutput struct {
	Rows int `json:"rows" jsonschema:"trigram rows deleted"`
}

// IndexStatusInput is the input of index_status.
type IndexStatusInput struct{}

// IndexStatusOutput is the output of index_status.
type IndexStatusOutput struct {
	Namespace string                       `json:"namespace,omitempty"`
	Backend   string                       `json:"backend"`
	Strategy  string                       `json:"strategy"`
	Fields    []string                     `json:"fields"`
	Stats     IndexStats                   `json:"stats"`
	Indexing  *async.IndexProgressSnapshot `json:"indexing,omitempty"`
}

// IndexStats summarizes the stored rows.
type IndexStats struct {
	Rows       int            `json:"rows"`
	Owners     int            `json:"owners"`
	OwnerTypes map[string]int `json:"owner_types"`
}
