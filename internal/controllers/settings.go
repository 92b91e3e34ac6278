package controllers

import (
	"context"
	"time"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/patrickmn/go-cache"
)

// SettingsCache is a read-through cache of owner settings
type SettingsCache struct {
	db    *models.Database
	cache *cache.Cache
}

// NewSettingsCache creates a settings cache with the given TTL
func NewSettingsCache(db *models.Database, ttl time.Duration) *SettingsCache {
	return &SettingsCache{
		db:    db,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Get returns a copy of the owner's settings
func (s *SettingsCache) Get(ctx context.Context, ownerID string) (*models.Settings, error) {
	if cached, ok := s.cache.Get(ownerID); ok {
		settings := *cached.(*models.Settings)
		return &settings, nil
	}

	settings, err := s.db.GetSettings(ownerID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(ownerID, settings)

	copied := *settings
	return &copied, nil
}

// Save stores settings and drops the cached copy
func (s *SettingsCache) Save(ctx context.Context, settings *models.Settings) error {
	if err := s.db.SaveSettings(settings); err != nil {
		return err
	}
	s.Invalidate(settings.OwnerID)
	return nil
}

// Invalidate drops the cached settings of an owner
func (s *SettingsCache) Invalidate(ownerID string) {
	s.cache.Delete(ownerID)
}
