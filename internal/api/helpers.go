// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/models"
)

// respondJSON writes a success envelope. queryStart feeds the
// query_time_ms metadata field.
func respondJSON(w http.ResponseWriter, status int, data interface{}, queryStart time.Time) {
	resp := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(queryStart).Milliseconds(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	resp := models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode error response")
	}
}

// queryInt parses an optional integer query parameter, falling back to
// def when absent. A present but malformed or negative value is an
// error so bad requests fail loudly instead of silently using defaults.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %d", name, v)
	}
	return v, nil
}

// maxCustomerIDLength bounds path input before it reaches lookups and
// logs.
const maxCustomerIDLength = 64

// validateCustomerID rejects empty, oversized, or control-character
// customer IDs.
func validateCustomerID(id string) error {
	if id == "" {
		return fmt.Errorf("customer ID must not be empty")
	}
	if len(id) > maxCustomerIDLength {
		return fmt.Errorf("customer ID exceeds %d characters", maxCustomerIDLength)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("customer ID contains control characters")
		}
	}
	return nil
}

// sanitizeLogValue strips characters that would allow log injection
// from user-supplied values before they reach structured logs.
func sanitizeLogValue(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > maxCustomerIDLength {
		s = s[:maxCustomerIDLength]
	}
	return s
}
