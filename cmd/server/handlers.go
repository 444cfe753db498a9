package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/liamcoop/mbsrules/catalog"
	"github.com/liamcoop/mbsrules/internal/logger"
	"github.com/liamcoop/mbsrules/rules"
)

const maxBodyBytes = 1 << 20

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.catalog.Snapshot(r.Context())
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		CatalogLoaded:  snapshot.Len() > 0,
		CatalogEntries: snapshot.Len(),
	})
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	reqs, err := decodeCandidates(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	candidates, err := toCandidates(reqs)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid candidates", err)
		return
	}

	startTime := time.Now()
	results := rules.Evaluate(candidates)
	evaluationTime := time.Since(startTime)

	if s.metrics != nil {
		for _, res := range results {
			s.metrics.RecordCandidate(string(res.Status))
		}
	}

	respondJSON(w, http.StatusOK, EvaluateResponse{
		Results:        results,
		EvaluationTime: evaluationTime.String(),
	})
}

// Selection validation handler
func (s *Server) handleValidateSelection(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSelection(w, r)
	if !ok {
		return
	}

	result := s.validator.ValidateSelection(r.Context(), *req.SelectedCodes, req.SelectionContext)
	if s.metrics != nil {
		s.metrics.RecordSelection(result.Blocked, len(result.Conflicts))
	}
	if result.Blocked {
		logger.Debug("selection blocked", "codes", *req.SelectedCodes, "conflicts", len(result.Conflicts))
	}

	respondJSON(w, http.StatusOK, result)
}

// Eligibility condition handler
func (s *Server) handleCheckConditions(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSelection(w, r)
	if !ok {
		return
	}

	report := s.conditions.Check(r.Context(), *req.SelectedCodes, req.SelectionContext)
	if s.metrics != nil {
		var checked, unmet, errored int
		for _, item := range report.Items {
			checked += item.Checked
			unmet += len(item.Unmet)
			errored += len(item.Errors)
		}
		s.metrics.RecordConditions(checked-unmet-errored, unmet, errored)
	}

	respondJSON(w, http.StatusOK, report)
}

// List catalog codes handler
func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	snapshot := s.catalog.Snapshot(r.Context())
	respondJSON(w, http.StatusOK, CatalogListResponse{
		Count: snapshot.Len(),
		Codes: snapshot.Codes(),
	})
}

// Get catalog entry handler
func (s *Server) handleGetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	entry, ok := s.catalog.Snapshot(r.Context()).Lookup(code)
	if !ok {
		respondError(w, http.StatusNotFound, "catalog entry not found", fmt.Errorf("entry %s: %w", code, catalog.ErrEntryNotFound))
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// Catalog refresh handler
func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		logger.Error("catalog refresh failed", "error", err)
		respondError(w, http.StatusInternalServerError, "catalog refresh failed", err)
		return
	}

	respondJSON(w, http.StatusOK, RefreshResponse{
		Status: "refreshed",
		Count:  s.catalog.Snapshot(r.Context()).Len(),
	})
}

// decodeCandidates accepts a JSON array of candidates or {"candidates": [...]}.
func decodeCandidates(body []byte) ([]CandidateRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var reqs []CandidateRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, err
		}
		return reqs, nil
	}

	var req EvaluateRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, err
	}
	if req.Candidates == nil {
		return nil, errors.New("candidates are required")
	}
	return req.Candidates, nil
}

// toCandidates checks required fields and converts requests into rule candidates.
// Every problem found is reported, not just the first.
func toCandidates(reqs []CandidateRequest) ([]rules.RuleCandidate, error) {
	var problems []string
	seen := make(map[string]int, len(reqs))
	out := make([]rules.RuleCandidate, 0, len(reqs))

	for i, req := range reqs {
		code := ""
		if req.Code != nil {
			code = strings.TrimSpace(*req.Code)
		}
		if code == "" {
			problems = append(problems, fmt.Sprintf("candidate %d: code is required", i))
		} else if prev, dup := seen[code]; dup {
			problems = append(problems, fmt.Sprintf("candidate %d: duplicate code %s (also candidate %d)", i, code, prev))
		} else {
			seen[code] = i
		}

		if req.Title == nil {
			problems = append(problems, fmt.Sprintf("candidate %d: title is required", i))
		}

		switch {
		case req.Fee == nil:
			problems = append(problems, fmt.Sprintf("candidate %d: fee is required", i))
		case math.IsNaN(*req.Fee) || math.IsInf(*req.Fee, 0) || *req.Fee < 0:
			problems = append(problems, fmt.Sprintf("candidate %d: fee must be a non-negative number", i))
		}

		if req.TimeThreshold != nil && *req.TimeThreshold <= 0 {
			problems = append(problems, fmt.Sprintf("candidate %d: timeThreshold must be positive", i))
		}
		if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
			problems = append(problems, fmt.Sprintf("candidate %d: durationMinutes must not be negative", i))
		}

		ctx := rules.ConsultContext(req.Context)
		if !ctx.Valid() {
			problems = append(problems, fmt.Sprintf("candidate %d: context must be %q or %q", i, rules.ContextTelehealth, rules.ContextInPerson))
		}

		if len(problems) > 0 {
			continue
		}

		out = append(out, rules.RuleCandidate{
			Code:                  code,
			Title:                 *req.Title,
			Fee:                   *req.Fee,
			TimeThreshold:         req.TimeThreshold,
			Flags:                 req.Flags,
			MutuallyExclusiveWith: req.MutuallyExclusiveWith,
			Selected:              req.Selected,
			Context:               ctx,
			DurationMinutes:       req.DurationMinutes,
		})
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return out, nil
}

func decodeSelection(w http.ResponseWriter, r *http.Request) (SelectionRequest, bool) {
	var req SelectionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return req, false
	}
	if req.SelectedCodes == nil {
		respondError(w, http.StatusBadRequest, "selectedCodes is required", nil)
		return req, false
	}
	return req, true
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
