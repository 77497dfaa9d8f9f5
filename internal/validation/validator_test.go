// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package validation

import (
	"strings"
	"testing"
)

type testRequest struct {
	Name  string `validate:"required"`
	Limit int    `validate:"min=0,max=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       testRequest
		wantErr   bool
		wantField string
	}{
		{
			name:    "valid request",
			req:     testRequest{Name: "ok", Limit: 5},
			wantErr: false,
		},
		{
			name:      "missing required field",
			req:       testRequest{Limit: 5},
			wantErr:   true,
			wantField: "Name",
		},
		{
			name:      "limit above max",
			req:       testRequest{Name: "ok", Limit: 500},
			wantErr:   true,
			wantField: "Limit",
		},
		{
			name:      "limit below min",
			req:       testRequest{Name: "ok", Limit: -1},
			wantErr:   true,
			wantField: "Limit",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.req)

			if !tt.wantErr {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}

			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if got := verr.Errors()[0].Field(); got != tt.wantField {
				t.Errorf("failed field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	// Two failing fields should produce a combined message with details.
	verr := ValidateStruct(&testRequest{Name: "", Limit: 999})
	if verr == nil {
		t.Fatal("expected validation error")
	}

	apiErr := verr.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Name") || !strings.Contains(apiErr.Message, "Limit") {
		t.Errorf("Message = %q, want both field names", apiErr.Message)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("Details missing fields entry")
	}
}
