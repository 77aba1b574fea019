package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medslots/internal/model"
)

const settingsKeyPrefix = "settings:"

// CachedSettings is a read-through redis cache in front of a SettingsRepository.
// Redis failures fall through to the underlying repository. Absent settings are not cached.
type CachedSettings struct {
	next   SettingsRepository
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCachedSettings wraps next. A nil client or non-positive ttl disables caching.
func NewCachedSettings(next SettingsRepository, client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *CachedSettings {
	return &CachedSettings{next: next, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedSettings) GetSettings(ctx context.Context, clinicID string) (*model.BookingSettings, error) {
	key := settingsKeyPrefix + clinicID

	var cached model.BookingSettings
	if c.readCache(ctx, key, &cached) {
		return &cached, nil
	}

	settings, err := c.next.GetSettings(ctx, clinicID)
	if err != nil || settings == nil {
		return settings, err
	}

	c.writeCache(ctx, key, settings)
	return settings, nil
}

// Invalidate drops cached settings for the given clinics, or for every clinic when none are given.
func (c *CachedSettings) Invalidate(ctx context.Context, clinicIDs ...string) error {
	if c.redis == nil {
		return nil
	}

	if len(clinicIDs) > 0 {
		keys := make([]string, 0, len(clinicIDs))
		for _, id := range clinicIDs {
			keys = append(keys, settingsKeyPrefix+id)
		}
		return c.redis.Del(ctx, keys...).Err()
	}

	iter := c.redis.Scan(ctx, 0, settingsKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *CachedSettings) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("settings cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *CachedSettings) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("settings cache write failed")
	}
}
