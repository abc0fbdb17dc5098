package repository

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-search-repository/search"
)

// ownerRef is the projected slice of a document carried through a scroll:
// just enough to delete, patch, invalidate and group notifications.
type ownerRef struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	ProjectID      string `json:"project_id"`
}

// scrollEach drives a scroll cursor over every entity matching the options
// and applies the batch mutation per page. The traversal is a small state
// machine: open cursor, drain batches, terminal on an empty page.
//
// An invalid cursor (the index does not exist yet) is the empty-domain case
// and returns zero affected, not an error. Any batch failure, apply or
// lease renewal alike, aborts the whole traversal and reports zero net
// progress;
// the filter, not a cursor position, defines the remaining work, so the
// caller can safely re-issue the identical call.
func (m *Mutable[T]) scrollEach(ctx context.Context, opts *Options, apply func(ctx context.Context, batch []search.Document) error) (int64, map[string]struct{}, error) {
	req := buildRequest(opts, m.desc.SoftDeletes, m.desc.deletedField(), m.resolver.SearchIndexes())
	req.Fields = []string{"id", "organization_id", "project_id"}
	req.Limit = m.cfg.scrollBatchSize
	req.Skip = 0
	req.Sort = nil
	req.Scroll = m.cfg.scrollLease

	m.cfg.metrics.StoreCall(m.desc.Name, "scroll_open")
	res, err := m.store.Search(ctx, req)
	if err != nil {
		return 0, nil, storeError("scroll_open", m.desc.Name, 0, err)
	}
	if !res.Valid || len(res.Documents) == 0 {
		return 0, nil, nil
	}

	var affected int64
	orgs := make(map[string]struct{})
	for len(res.Documents) > 0 {
		if err := apply(ctx, res.Documents); err != nil {
			return 0, orgs, err
		}
		for _, doc := range res.Documents {
			m.cacheRemove(ctx, doc.ID)
			var ref ownerRef
			if err := json.Unmarshal(doc.Source, &ref); err == nil && ref.OrganizationID != "" {
				orgs[ref.OrganizationID] = struct{}{}
			}
		}
		affected += int64(len(res.Documents))

		if res.ScrollID == "" {
			break
		}
		m.cfg.metrics.StoreCall(m.desc.Name, "scroll")
		res, err = m.store.Scroll(ctx, res.ScrollID, m.cfg.scrollLease)
		if err != nil {
			// Lease renewal failures fail closed.
			return 0, orgs, storeError("scroll", m.desc.Name, 0, err)
		}
		if !res.Valid {
			return 0, orgs, storeError("scroll", m.desc.Name, res.Status, nil)
		}
	}
	return affected, orgs, nil
}
