// Package model holds the domain entities the concrete repositories manage:
// stacks (the deduplicated error aggregate, carrying occurrence counters)
// and events (the individual occurrences, stored time-series).
package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// StackTypeNotFound tags stacks produced by 404 tracking rather than errors.
const StackTypeNotFound = "404"

// Stack is the aggregate an occurrence stream rolls up into. The counter
// triple (FirstOccurrence, LastOccurrence, TotalOccurrences) is maintained
// through conditional store-side updates, never through whole-document
// writes; see the stacks package.
type Stack struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	SignatureHash  string `json:"signature_hash"`

	Hidden  bool       `json:"hidden"`
	FixedAt *time.Time `json:"fixed_at,omitempty"`

	FirstOccurrence  time.Time `json:"first_occurrence"`
	LastOccurrence   time.Time `json:"last_occurrence"`
	TotalOccurrences int64     `json:"total_occurrences"`

	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Stack) GetID() string   { return s.ID }
func (s *Stack) SetID(id string) { s.ID = id }

// IsFixed reports whether the stack is currently marked fixed.
func (s *Stack) IsFixed() bool { return s.FixedAt != nil }

// Validate checks the fields every stored stack must carry.
func (s *Stack) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.OrganizationID, validation.Required),
		validation.Field(&s.ProjectID, validation.Required),
		validation.Field(&s.SignatureHash, validation.Required),
		validation.Field(&s.Title, validation.Length(0, 1000)),
	)
}
