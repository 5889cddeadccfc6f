/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not already
  domain types. Classifications, templates, matches, evaluations and
  previews are returned as their domain structs; the types here cover
  request bodies and small wrappers.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/homecare-engine/assessment"
	"github.com/warp/homecare-engine/billing"
	"github.com/warp/homecare-engine/bundle"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ScoreRequest carries raw assessment items.
type ScoreRequest struct {
	Items assessment.ItemSet `json:"items"`
}

// EvaluateClassificationRequest evaluates the patient's current
// classification without reclassifying.
type EvaluateClassificationRequest struct {
	OrganizationID *string      `json:"organization_id,omitempty"`
	AsOf           generic.Date `json:"as_of"`
}

// CreateRateRequest creates a rate record. The server assigns the ID.
type CreateRateRequest struct {
	ServiceType    string           `json:"service_type"`
	OrganizationID *string          `json:"organization_id,omitempty"`
	UnitType       generic.UnitType `json:"unit_type"`
	RateCents      generic.Cents    `json:"rate_cents"`
	EffectiveFrom  generic.Date     `json:"effective_from"`
	EffectiveTo    *generic.Date    `json:"effective_to,omitempty"`
}

func (r CreateRateRequest) record() billing.RateRecord {
	return billing.RateRecord{
		ServiceType:    r.ServiceType,
		OrganizationID: r.OrganizationID,
		UnitType:       r.UnitType,
		RateCents:      r.RateCents,
		EffectiveFrom:  r.EffectiveFrom,
		EffectiveTo:    r.EffectiveTo,
	}
}

// PreviewRequest reprices a stored care plan snapshot.
type PreviewRequest struct {
	Snapshot       billing.PlanSnapshot `json:"snapshot"`
	OrganizationID *string              `json:"organization_id,omitempty"`
	AsOf           generic.Date         `json:"as_of"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ClassificationsResponse struct {
	PatientID       string               `json:"patient_id"`
	Classifications []rug.Classification `json:"classifications"`
}

type TemplatesResponse struct {
	Templates []bundle.Template `json:"templates"`
}

type MatchesResponse struct {
	Matches []bundle.Match `json:"matches"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
