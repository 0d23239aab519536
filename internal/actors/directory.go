package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"financing-portal/internal/common/logger"
	"financing-portal/internal/models"
	"financing-portal/internal/store"

	"github.com/redis/go-redis/v9"
)

// Directory serves profile lookups for notification fan-out. Role member
// lists are cached in Redis under role:<ROLE>.
type Directory struct {
	store  store.EntityStore
	redis  redis.UniversalClient
	users  UserLookup
	ttl    time.Duration
	logger logger.Logger
}

func NewDirectory(s store.EntityStore, rdb redis.UniversalClient, users UserLookup, ttl time.Duration, log logger.Logger) *Directory {
	return &Directory{
		store:  s,
		redis:  rdb,
		users:  users,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "directory"}),
	}
}

func roleKey(role models.Role) string {
	return "role:" + string(role)
}

func (d *Directory) UsersByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	if d.redis != nil {
		cached, err := d.redis.Get(ctx, roleKey(role)).Result()
		switch {
		case err == nil:
			var profiles []models.Profile
			if jsonErr := json.Unmarshal([]byte(cached), &profiles); jsonErr == nil {
				return profiles, nil
			}
		case !errors.Is(err, redis.Nil):
			d.logger.Warn("role cache read failed", map[string]interface{}{"role": role, "error": err})
		}
	}

	profiles, err := store.LoadAll[models.Profile](ctx, d.store, store.TableProfiles,
		store.Filter{store.Eq("role", role)}, store.OldestFirst())
	if err != nil {
		return nil, fmt.Errorf("load %s profiles: %w", role, err)
	}

	if d.redis != nil {
		if data, err := json.Marshal(profiles); err == nil {
			if err := d.redis.Set(ctx, roleKey(role), data, d.ttl).Err(); err != nil {
				d.logger.Warn("role cache write failed", map[string]interface{}{"role": role, "error": err})
			}
		}
	}
	return profiles, nil
}

// Invalidate drops the cached member list for role.
func (d *Directory) Invalidate(ctx context.Context, role models.Role) error {
	if d.redis == nil {
		return nil
	}
	return d.redis.Del(ctx, roleKey(role)).Err()
}

// Profile returns the profile for userID, filling a missing email from the
// identity provider.
func (d *Directory) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := store.Load(ctx, d.store, store.TableProfiles, userID, &p); err != nil {
		return nil, err
	}

	if p.Email == "" && d.users != nil {
		user, err := d.users.GetUser(ctx, userID)
		if err != nil {
			d.logger.Warn("identity lookup failed", map[string]interface{}{"userId": userID, "error": err})
		} else if user != nil {
			p.Email = user.Email
			if p.FullName == "" {
				p.FullName = user.FullName()
			}
		}
	}
	return &p, nil
}
