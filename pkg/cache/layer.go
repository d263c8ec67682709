// Package cache holds the response cache and the session-state cache. Both
// live in one key-value store under separate key prefixes. Every failure is
// reported as a miss; callers recompute.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/store"
)

const (
	DefaultTTL = 24 * time.Hour

	responsePrefix = "cache:"
	statePrefix    = "state:"
)

// NormalizePrompt trims the prompt and collapses whitespace runs to a single
// space. Case is preserved.
func NormalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(prompt), " ")
}

// ResponseKey is content addressed: the same session and normalised prompt
// always map to the same key.
func ResponseKey(sessionID, prompt string) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(NormalizePrompt(prompt)))
	return responsePrefix + hex.EncodeToString(h.Sum(nil))
}

func StateKey(sessionID string) string {
	return statePrefix + sessionID
}

type Layer struct {
	store  Store
	ttl    time.Duration
	policy retry.Policy
	logger logger.ILogger
}

func NewLayer(kv Store, ttl time.Duration, policy retry.Policy, log logger.ILogger) *Layer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if policy.Stage == "" {
		policy.Stage = "cache"
	}
	return &Layer{store: kv, ttl: ttl, policy: policy, logger: log}
}

// TTL returns the default entry lifetime.
func (l *Layer) TTL() time.Duration {
	return l.ttl
}

func (l *Layer) GetResponse(ctx context.Context, sessionID, prompt string) (*store.Interaction, bool) {
	var it store.Interaction
	if !l.get(ctx, ResponseKey(sessionID, prompt), &it) {
		return nil, false
	}
	return &it, true
}

func (l *Layer) PutResponse(ctx context.Context, sessionID, prompt string, it store.Interaction, ttl time.Duration) error {
	return l.put(ctx, ResponseKey(sessionID, prompt), it, ttl)
}

func (l *Layer) GetState(ctx context.Context, sessionID string) (*store.SessionSnapshot, bool) {
	var snap store.SessionSnapshot
	if !l.get(ctx, StateKey(sessionID), &snap) {
		return nil, false
	}
	return &snap, true
}

func (l *Layer) PutState(ctx context.Context, sessionID string, snap store.SessionSnapshot, ttl time.Duration) error {
	return l.put(ctx, StateKey(sessionID), snap, ttl)
}

func (l *Layer) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := retry.Do(ctx, l.policy, func(ctx context.Context) ([]byte, error) {
		v, err := l.store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, apperror.Cache("cache.get", err)
		}
		return v, nil
	})
	if err != nil {
		l.logger.Warn("CACHE", "Cache read failed, treating as miss", map[string]interface{}{
			"key":      key,
			"attempts": retry.AttemptsOf(err),
			"error":    err.Error(),
		})
		return false
	}
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		l.logger.Warn("CACHE", "Discarding undecodable cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}
	return true
}

func (l *Layer) put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = l.ttl
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return apperror.Cache("cache.encode", err)
	}
	err = retry.Run(ctx, l.policy, func(ctx context.Context) error {
		if err := l.store.Set(ctx, key, raw, ttl); err != nil {
			return apperror.Cache("cache.set", err)
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("CACHE", "Cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return err
	}
	return nil
}
