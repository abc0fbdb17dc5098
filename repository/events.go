package repository

import (
	"context"
	"sort"
	"time"

	"github.com/goliatone/go-search-repository/messaging"
)

// DefaultNotificationDelay is the coalescing window between a mutation and
// its published event. The index is near-real-time; the delay lets refresh
// visibility catch up before subscribers re-query.
const DefaultNotificationDelay = 1500 * time.Millisecond

// notifier groups change events by owner and publishes them after the
// coalescing delay. The grouping strategy is fixed per descriptor ownership
// variant at construction.
type notifier[T Entity] struct {
	desc      Descriptor[T]
	publisher messaging.Publisher
	delay     time.Duration
	batch     bool
}

type ownerGroup struct {
	organizationID string
	projectID      string
	entityIDs      []string
}

// notify publishes one event per owner group, or a single multiplexed event
// when batching is enabled. The entity id only rides along when a group has
// exactly one member; subscribers of larger groups re-query by owner.
func (n *notifier[T]) notify(ctx context.Context, kind messaging.ChangeKind, entities []T) error {
	if n.publisher == nil || len(entities) == 0 {
		return nil
	}
	groups := n.group(entities)
	if n.batch {
		groups = n.collapse(groups, entities)
	}
	for _, g := range groups {
		msg := messaging.EntityChanged{
			Kind:           kind,
			EntityType:     n.desc.Name,
			OrganizationID: g.organizationID,
			ProjectID:      g.projectID,
		}
		if len(g.entityIDs) == 1 {
			msg.EntityID = g.entityIDs[0]
		}
		if err := n.publisher.Publish(ctx, msg, n.delay); err != nil {
			return err
		}
	}
	return nil
}

// notifyOrganizations emits one coarse event per organization. Bulk scroll
// operations use it to bound event volume.
func (n *notifier[T]) notifyOrganizations(ctx context.Context, kind messaging.ChangeKind, orgIDs map[string]struct{}) error {
	if n.publisher == nil || len(orgIDs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orgIDs))
	for id := range orgIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		msg := messaging.EntityChanged{
			Kind:           kind,
			EntityType:     n.desc.Name,
			OrganizationID: id,
		}
		if err := n.publisher.Publish(ctx, msg, n.delay); err != nil {
			return err
		}
	}
	return nil
}

func (n *notifier[T]) group(entities []T) []ownerGroup {
	switch n.desc.Ownership {
	case OwnedByProject:
		return n.groupBy(entities, func(e T) (string, string) {
			return n.desc.OrganizationID(e), n.desc.ProjectID(e)
		})
	case OwnedByOrganization:
		return n.groupBy(entities, func(e T) (string, string) {
			return n.desc.OrganizationID(e), ""
		})
	default:
		groups := make([]ownerGroup, 0, len(entities))
		for _, e := range entities {
			groups = append(groups, ownerGroup{entityIDs: []string{e.GetID()}})
		}
		return groups
	}
}

func (n *notifier[T]) groupBy(entities []T, owner func(T) (string, string)) []ownerGroup {
	byKey := make(map[string]*ownerGroup)
	var order []string
	for _, e := range entities {
		org, project := owner(e)
		key := org + "/" + project
		g, ok := byKey[key]
		if !ok {
			g = &ownerGroup{organizationID: org, projectID: project}
			byKey[key] = g
			order = append(order, key)
		}
		g.entityIDs = append(g.entityIDs, e.GetID())
	}
	groups := make([]ownerGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// collapse folds every group into one event covering the whole batch. Owner
// ids survive only when uniform across the batch.
func (n *notifier[T]) collapse(groups []ownerGroup, entities []T) []ownerGroup {
	if len(groups) <= 1 {
		return groups
	}
	merged := ownerGroup{
		organizationID: groups[0].organizationID,
		projectID:      groups[0].projectID,
	}
	for _, g := range groups {
		if g.organizationID != merged.organizationID {
			merged.organizationID = ""
		}
		if g.projectID != merged.projectID {
			merged.projectID = ""
		}
		merged.entityIDs = append(merged.entityIDs, g.entityIDs...)
	}
	if len(entities) == 1 {
		merged.entityIDs = merged.entityIDs[:1]
	}
	return []ownerGroup{merged}
}
