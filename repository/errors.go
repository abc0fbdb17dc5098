package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-search-repository/index"
	"github.com/goliatone/go-search-repository/search"
)

// ErrUnresolvableShard re-exports the index package sentinel so callers can
// test for it without importing both packages.
var ErrUnresolvableShard = index.ErrUnresolvableShard

// ValidationError aborts a batch before any write. It carries the failing
// entity so callers can log which member of the batch was rejected.
type ValidationError struct {
	EntityType string
	EntityID   string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed (id=%q): %v", e.EntityType, e.EntityID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreError is a fatal, non-retried failure reported by the index store.
// Status carries the store's status code; Items carries per-document bulk
// errors when the failing call was a bulk one.
type StoreError struct {
	Op         string
	EntityType string
	Status     int
	Items      []search.BulkError
	Err        error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store %s failed for %s (status=%d)", e.Op, e.EntityType, e.Status)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, item := range e.Items {
		fmt.Fprintf(&b, "; id=%s: %s", item.ID, item.Reason)
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func storeError(op, entityType string, status int, err error, items ...search.BulkError) error {
	return &StoreError{Op: op, EntityType: entityType, Status: status, Err: err, Items: items}
}
