package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStackValidate(t *testing.T) {
	s := &Stack{
		OrganizationID: "org-1",
		ProjectID:      "p1",
		SignatureHash:  "sig-1",
		Type:           "Error",
		Title:          "boom",
	}
	assert.NoError(t, s.Validate())

	assert.Error(t, (&Stack{ProjectID: "p1", SignatureHash: "sig"}).Validate())
	assert.Error(t, (&Stack{OrganizationID: "org-1", SignatureHash: "sig"}).Validate())
	assert.Error(t, (&Stack{OrganizationID: "org-1", ProjectID: "p1"}).Validate())
}

func TestStackIsFixed(t *testing.T) {
	s := &Stack{}
	assert.False(t, s.IsFixed())

	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.FixedAt = &at
	assert.True(t, s.IsFixed())
}

func TestEventValidate(t *testing.T) {
	e := &Event{
		OrganizationID: "org-1",
		ProjectID:      "p1",
		Type:           "error",
		Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, e.Validate())

	assert.Error(t, (&Event{OrganizationID: "org-1", ProjectID: "p1", Type: "error"}).Validate())
	assert.Error(t, (&Event{OrganizationID: "org-1", ProjectID: "p1", Date: e.Date}).Validate())
}
