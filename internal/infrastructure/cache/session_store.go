package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealsmith/v2/internal/infrastructure/config"
	"github.com/mealsmith/v2/internal/ports/inbound"
)

// ErrSessionNotFound marks a missing or expired planning session.
var ErrSessionNotFound = errors.New("session not found")

// PlanSession is one browser's planning state: the last generated plan
// and the cache keys of images rendered for it. Tracking the keys lets
// the store evict images when the session ends instead of waiting out
// their TTL.
type PlanSession struct {
	ID         string               `json:"id"`
	CreatedAt  time.Time            `json:"created_at"`
	LastAccess time.Time            `json:"last_access"`
	ExpiresAt  time.Time            `json:"expires_at"`
	Plan       *inbound.MealPlanDTO `json:"plan,omitempty"`
	ImageKeys  []string             `json:"image_keys,omitempty"`
}

// SessionStore keeps planning sessions in the cache service with a
// sliding expiration window.
type SessionStore struct {
	cache  *Service
	config config.SessionConfig
	logger *zap.Logger
}

// NewSessionStore creates a session store backed by the cache service.
func NewSessionStore(cache *Service, cfg config.SessionConfig, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		cache:  cache,
		config: cfg,
		logger: logger.Named("session-store"),
	}
}

// Create starts a new empty session.
func (ss *SessionStore) Create(ctx context.Context) (*PlanSession, error) {
	now := time.Now()
	session := &PlanSession{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		LastAccess: now,
		ExpiresAt:  now.Add(ss.config.MaxAge),
	}

	if err := ss.save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ss.logger.Debug("Session created", zap.String("session_id", session.ID))
	return session, nil
}

// Get retrieves a session and slides its expiration forward.
func (ss *SessionStore) Get(ctx context.Context, sessionID string) (*PlanSession, error) {
	data, err := ss.cache.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session PlanSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		// Lazy cleanup for entries the TTL has not reaped yet
		if err := ss.Delete(ctx, sessionID); err != nil {
			ss.logger.Warn("Failed to clean up expired session",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, ErrSessionNotFound
	}

	now := time.Now()
	session.LastAccess = now
	session.ExpiresAt = now.Add(ss.config.MaxAge)
	if err := ss.save(ctx, &session); err != nil {
		ss.logger.Warn("Failed to extend session",
			zap.String("session_id", sessionID), zap.Error(err))
	}

	return &session, nil
}

// SavePlan attaches a generated plan to the session, replacing any
// previous one. Images belonging only to the replaced plan get
// evicted; keys shared with the new plan stay.
func (ss *SessionStore) SavePlan(ctx context.Context, sessionID string, plan *inbound.MealPlanDTO) error {
	session, err := ss.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		now := time.Now()
		session = &PlanSession{
			ID:         sessionID,
			CreatedAt:  now,
			LastAccess: now,
			ExpiresAt:  now.Add(ss.config.MaxAge),
		}
	}

	newKeys := plan.ImageKeys()
	keep := make(map[string]bool, len(newKeys))
	for _, key := range newKeys {
		keep[key] = true
	}
	for _, key := range session.ImageKeys {
		if !keep[key] {
			ss.dropImage(ctx, key)
		}
	}

	session.Plan = plan
	session.ImageKeys = newKeys
	session.LastAccess = time.Now()

	if err := ss.save(ctx, session); err != nil {
		return fmt.Errorf("failed to save plan to session: %w", err)
	}

	ss.logger.Debug("Plan saved to session",
		zap.String("session_id", sessionID),
		zap.String("plan_id", plan.ID),
		zap.Int("image_keys", len(newKeys)))

	return nil
}

// Delete ends a session and evicts the images rendered for it.
func (ss *SessionStore) Delete(ctx context.Context, sessionID string) error {
	data, err := ss.cache.Get(ctx, sessionKey(sessionID))
	if err == nil {
		var session PlanSession
		if err := json.Unmarshal(data, &session); err == nil {
			for _, key := range session.ImageKeys {
				ss.dropImage(ctx, key)
			}
		}
	}

	if err := ss.cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	ss.logger.Debug("Session deleted", zap.String("session_id", sessionID))
	return nil
}

func (ss *SessionStore) save(ctx context.Context, session *PlanSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return ss.cache.Set(ctx, sessionKey(session.ID), data, ss.config.MaxAge)
}

func (ss *SessionStore) dropImage(ctx context.Context, key string) {
	if err := ss.cache.Delete(ctx, key); err != nil {
		ss.logger.Warn("Failed to evict session image",
			zap.String("key", key), zap.Error(err))
	}
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}
