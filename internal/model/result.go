package model

import "strings"

// CleaningResult is the agent's output for one record. CleanedData is
// always non-nil, even when the AI path failed entirely.
type CleaningResult struct {
	CleanedData    map[string]string `json:"cleaned_data"`
	Issues         []string          `json:"issues"`
	AccuracyScore  int               `json:"accuracy_score"`
	EnrichedFields []string          `json:"enriched_fields,omitempty"`
}

// Flatten merges CleanedData with the score and a joined issue string,
// matching the shape the results front end renders.
func (cr *CleaningResult) Flatten() map[string]any {
	out := make(map[string]any, len(cr.CleanedData)+2)
	for k, v := range cr.CleanedData {
		out[k] = v
	}
	out["accuracy_score"] = cr.AccuracyScore
	out["issues"] = strings.Join(cr.Issues, ", ")
	return out
}

// SearchConfidence grades how trustworthy a search pass was.
type SearchConfidence string

const (
	ConfidenceHigh   SearchConfidence = "high"
	ConfidenceMedium SearchConfidence = "medium"
	ConfidenceLow    SearchConfidence = "low"
)

// FoundInfo holds contact fields recovered by a single search query.
// Empty strings mean the query found nothing for that field.
type FoundInfo struct {
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	Website        string `json:"website"`
	VerifiedSource string `json:"verified_source"`
}

// SearchResult is the parsed response of one enrichment search query.
// Transient; it lives only in the search cache.
type SearchResult struct {
	FoundInfo     FoundInfo        `json:"found_info"`
	Confidence    SearchConfidence `json:"confidence"`
	SearchSummary string           `json:"search_summary"`
}

// Empty reports whether the search recovered no contact fields at all.
func (sr *SearchResult) Empty() bool {
	fi := sr.FoundInfo
	return fi.Phone == "" && fi.Email == "" && fi.Address == "" && fi.Website == "" && fi.VerifiedSource == ""
}
