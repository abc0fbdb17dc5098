package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity is any domain record with a store-global, time-ordered string id.
// Ids are UUIDv7 tokens, so an id implies its creation time; shard
// resolution and bulk grouping rely on that without extra lookups.
type Entity interface {
	GetID() string
	SetID(id string)
}

// Ownership describes which owner group scopes an entity type's
// notifications and system filters.
type Ownership int

const (
	OwnedByNone Ownership = iota
	OwnedByOrganization
	OwnedByProject
)

// Descriptor declares an entity type's capabilities once, at repository
// construction, instead of re-deriving them per call. Optional function
// fields follow an absent-means-disabled contract: a nil Validate skips
// validation, a nil Stamp skips date stamping, and so on.
type Descriptor[T Entity] struct {
	// Name is the logical index name, cache scope and event type tag.
	Name string

	// Version is the index mapping version baked into physical index names.
	Version int

	// TimeSeries types shard by month; their ids must encode the same
	// creation time ShardDate reports.
	TimeSeries bool

	// SoftDeletes types carry a logical-delete flag; default queries
	// exclude flagged documents.
	SoftDeletes bool

	// DeletedField is the document field holding the soft-delete flag.
	// Defaults to "is_deleted".
	DeletedField string

	// Ownership selects the notification grouping strategy and which owner
	// accessors must be present.
	Ownership Ownership

	OrganizationID func(T) string
	ProjectID      func(T) string

	// Stamp sets creation (when unset) and modification timestamps on
	// types that track dates.
	Stamp func(T, time.Time)

	// ShardDate returns the shard-determining date of a time-series entity.
	ShardDate func(T) time.Time

	// Validate rejects invalid entities before any write.
	Validate func(T) error
}

// Check verifies the descriptor is internally consistent.
func (d Descriptor[T]) Check() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor: Name is required")
	}
	if d.Version <= 0 {
		return fmt.Errorf("descriptor %s: Version must be positive", d.Name)
	}
	if d.TimeSeries && d.ShardDate == nil {
		return fmt.Errorf("descriptor %s: time-series types need ShardDate", d.Name)
	}
	switch d.Ownership {
	case OwnedByOrganization:
		if d.OrganizationID == nil {
			return fmt.Errorf("descriptor %s: organization-owned types need OrganizationID", d.Name)
		}
	case OwnedByProject:
		if d.OrganizationID == nil || d.ProjectID == nil {
			return fmt.Errorf("descriptor %s: project-owned types need OrganizationID and ProjectID", d.Name)
		}
	}
	return nil
}

func (d Descriptor[T]) deletedField() string {
	if d.DeletedField != "" {
		return d.DeletedField
	}
	return "is_deleted"
}

// NewID returns a fresh time-ordered id for the current moment.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to the
		// pool-backed generator which panics on the same condition.
		return uuid.Must(uuid.NewV7()).String()
	}
	return id.String()
}

// NewIDAt returns a time-ordered id encoding the given creation time. Add
// uses it for time-series entities so the id resolves to the same shard the
// entity's date places it in.
func NewIDAt(t time.Time) string {
	u := uuid.New()
	ms := uint64(t.UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)
	u[6] = 0x70 | (u[6] & 0x0F)
	u[8] = 0x80 | (u[8] & 0x3F)
	return u.String()
}
