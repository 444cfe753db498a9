package main

import (
	"github.com/liamcoop/mbsrules/catalog"
	"github.com/liamcoop/mbsrules/rules"
)

// API request and response models

// CandidateRequest is one candidate in an evaluate request. Required fields are
// pointers so that a missing value can be told apart from a zero value.
type CandidateRequest struct {
	Code                  *string       `json:"code"`
	Title                 *string       `json:"title"`
	Fee                   *float64      `json:"fee"`
	TimeThreshold         *float64      `json:"timeThreshold,omitempty"`
	Flags                 catalog.Flags `json:"flags,omitempty"`
	MutuallyExclusiveWith []string      `json:"mutuallyExclusiveWith,omitempty"`
	Selected              bool          `json:"selected"`
	Context               string        `json:"context,omitempty"`
	DurationMinutes       *float64      `json:"durationMinutes,omitempty"`
}

// EvaluateRequest is the object form of an evaluate request body. A bare JSON
// array of candidates is accepted as well.
type EvaluateRequest struct {
	Candidates []CandidateRequest `json:"candidates"`
}

// EvaluateResponse is returned by POST /api/v1/rules/evaluate
type EvaluateResponse struct {
	Results        []rules.EvaluationResult `json:"results"`
	EvaluationTime string                   `json:"evaluationTime"`
}

// SelectionRequest is the body of the selection endpoints. SelectedCodes is
// required but may be an empty array.
type SelectionRequest struct {
	SelectedCodes *[]string `json:"selectedCodes"`
	rules.SelectionContext
}

// HealthResponse is returned by GET /api/v1/health
type HealthResponse struct {
	Status         string `json:"status"`
	CatalogLoaded  bool   `json:"catalogLoaded"`
	CatalogEntries int    `json:"catalogEntries"`
}

// CatalogListResponse is returned by GET /api/v1/catalog
type CatalogListResponse struct {
	Count int      `json:"count"`
	Codes []string `json:"codes"`
}

// RefreshResponse is returned by POST /api/v1/catalog/refresh
type RefreshResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
