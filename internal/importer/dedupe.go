package importer

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/leadvault/chatimport-cli/internal/cache"
	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/store"
)

// DuplicateDetector checks parsed records against existing clients in the
// organization. Phone is the identity key; a differing stored name on a
// phone match is reported as a name conflict so operators can review it.
// Lookups go through a TTL cache keyed per organization and phone.
type DuplicateDetector struct {
	store store.Store
	cache *cache.Cache
}

// NewDuplicateDetector builds a detector. c may be nil to disable caching.
func NewDuplicateDetector(st store.Store, c *cache.Cache) *DuplicateDetector {
	return &DuplicateDetector{store: st, cache: c}
}

func dupCacheKey(orgID, phone string) string {
	return "dup:" + orgID + ":" + phone
}

// Check looks up data.Phone (already normalized) within the organization.
func (d *DuplicateDetector) Check(ctx context.Context, orgID string, data *model.ParsedClientData) (*model.DuplicateCheckResult, error) {
	existing, err := d.lookup(ctx, orgID, data.Phone)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return &model.DuplicateCheckResult{IsDuplicate: false}, nil
	}

	result := &model.DuplicateCheckResult{
		IsDuplicate:      true,
		ExistingClientID: existing.ID,
		ConflictType:     model.ConflictPhone,
	}
	if existing.Name != "" && data.Name != "" && !strings.EqualFold(existing.Name, data.Name) {
		result.ConflictType = model.ConflictName
	}
	return result, nil
}

// Invalidate drops the cached lookup for one phone, e.g. after an import
// created the client.
func (d *DuplicateDetector) Invalidate(orgID, phone string) {
	if d.cache != nil {
		d.cache.Invalidate(dupCacheKey(orgID, phone))
	}
}

func (d *DuplicateDetector) lookup(ctx context.Context, orgID, phone string) (*model.Client, error) {
	key := dupCacheKey(orgID, phone)
	if d.cache != nil {
		if v, ok := d.cache.Get(key); ok {
			client, _ := v.(*model.Client)
			return client, nil
		}
	}

	client, err := d.store.FindClientByPhone(ctx, orgID, phone)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: duplicate lookup for %s", phone)
	}
	if d.cache != nil {
		// Negative results are cached too: most contacts in a run are new.
		d.cache.Set(key, client)
	}
	return client, nil
}
