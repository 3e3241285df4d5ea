package importer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/leadvault/chatimport-cli/internal/cache"
	"github.com/leadvault/chatimport-cli/internal/model"
	"github.com/leadvault/chatimport-cli/internal/parse"
	"github.com/leadvault/chatimport-cli/internal/store"
)

// SettingsLoader reads per-organization import settings through a TTL
// cache. Organizations without a stored row get the built-in defaults.
type SettingsLoader struct {
	store store.Store
	cache *cache.Cache
}

// NewSettingsLoader builds a loader. c may be nil to disable caching.
func NewSettingsLoader(st store.Store, c *cache.Cache) *SettingsLoader {
	return &SettingsLoader{store: st, cache: c}
}

func settingsCacheKey(orgID string) string {
	return "orgsettings:" + orgID
}

// DefaultSettings are used when an organization has no stored settings.
func DefaultSettings(orgID string) model.OrgSettings {
	return model.OrgSettings{
		OrganizationID:  orgID,
		DefaultLanguage: parse.DefaultLanguage,
		PreferLLM:       false,
		SkipDuplicates:  true,
	}
}

// Load returns the organization's settings, from cache when fresh.
func (l *SettingsLoader) Load(ctx context.Context, orgID string) (model.OrgSettings, error) {
	key := settingsCacheKey(orgID)
	if l.cache != nil {
		if v, ok := l.cache.Get(key); ok {
			if settings, ok := v.(model.OrgSettings); ok {
				return settings, nil
			}
		}
	}

	stored, err := l.store.GetOrgSettings(ctx, orgID)
	if err != nil {
		return model.OrgSettings{}, eris.Wrapf(err, "importer: load settings for org %s", orgID)
	}

	settings := DefaultSettings(orgID)
	if stored != nil {
		settings = *stored
		if settings.DefaultLanguage == "" {
			settings.DefaultLanguage = parse.DefaultLanguage
		}
	}

	if l.cache != nil {
		l.cache.Set(key, settings)
	}
	return settings, nil
}

// Save persists settings and invalidates the cached copy.
func (l *SettingsLoader) Save(ctx context.Context, settings model.OrgSettings) error {
	if err := l.store.PutOrgSettings(ctx, settings); err != nil {
		return eris.Wrapf(err, "importer: save settings for org %s", settings.OrganizationID)
	}
	if l.cache != nil {
		l.cache.Invalidate(settingsCacheKey(settings.OrganizationID))
	}
	return nil
}
