// Package testsupport provides fixture builders shared by the package test
// suites.
package testsupport

import (
	"fmt"
	"time"

	"github.com/goliatone/go-search-repository/model"
)

// NewStack builds a valid stack owned by the given project.
func NewStack(projectID string, n int) *model.Stack {
	return &model.Stack{
		OrganizationID: "org-1",
		ProjectID:      projectID,
		Type:           "Error",
		Title:          fmt.Sprintf("NullReferenceException %d", n),
		SignatureHash:  fmt.Sprintf("sig-%s-%d", projectID, n),
	}
}

// NewEvent builds a valid event occurring at date, belonging to a stack.
func NewEvent(projectID, stackID string, date time.Time) *model.Event {
	return &model.Event{
		OrganizationID: "org-1",
		ProjectID:      projectID,
		StackID:        stackID,
		Type:           "error",
		Source:         "web",
		Message:        "object reference not set to an instance of an object",
		Date:           date,
		Value:          1,
	}
}
