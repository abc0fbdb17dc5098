package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Event is a single occurrence. Events are stored time-series in monthly
// shards keyed by Date; an event's id encodes the same date, so reads
// resolve the shard without a lookup. The IsFixed/IsHidden flags are
// denormalized from the owning stack and rewritten in bulk when the stack's
// status changes.
type Event struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id"`
	StackID        string `json:"stack_id"`

	Type    string    `json:"type"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message,omitempty"`
	Date    time.Time `json:"date"`
	Value   float64   `json:"value,omitempty"`

	IsFixed  bool `json:"is_fixed"`
	IsHidden bool `json:"is_hidden"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Event) GetID() string   { return e.ID }
func (e *Event) SetID(id string) { e.ID = id }

// Validate checks the fields every stored event must carry.
func (e *Event) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.OrganizationID, validation.Required),
		validation.Field(&e.ProjectID, validation.Required),
		validation.Field(&e.Type, validation.Required),
		validation.Field(&e.Date, validation.Required),
	)
}
