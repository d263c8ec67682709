package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"workflow-agent-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// StorageBackend persists interactions for a session. Load returns at most
// limit interactions, oldest first.
type StorageBackend interface {
	Name() string
	Load(ctx context.Context, sessionID string, limit int) ([]store.Interaction, error)
	Append(ctx context.Context, interaction store.Interaction) error
}

const maxEphemeralPerSession = 200

// EphemeralBackend keeps history in process memory. Entries expire after
// the retention window and are lost on restart.
type EphemeralBackend struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewEphemeralBackend(retention time.Duration) *EphemeralBackend {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &EphemeralBackend{cache: cache.New(retention, 10*time.Minute)}
}

func (b *EphemeralBackend) Name() string { return "ephemeral" }

func (b *EphemeralBackend) Load(ctx context.Context, sessionID string, limit int) ([]store.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	x, found := b.cache.Get(sessionID)
	if !found {
		return []store.Interaction{}, nil
	}
	all := x.([]store.Interaction)
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]store.Interaction, len(all))
	copy(out, all)
	return out, nil
}

func (b *EphemeralBackend) Append(ctx context.Context, interaction store.Interaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var all []store.Interaction
	if x, found := b.cache.Get(interaction.SessionID); found {
		all = x.([]store.Interaction)
	}
	next := make([]store.Interaction, 0, len(all)+1)
	next = append(next, all...)
	next = append(next, interaction)
	if len(next) > maxEphemeralPerSession {
		next = next[len(next)-maxEphemeralPerSession:]
	}
	b.cache.Set(interaction.SessionID, next, cache.DefaultExpiration)
	return nil
}

// mergeWindow unions two histories by interaction id, orders them by
// creation time and keeps the newest n.
func mergeWindow(primary, secondary []store.Interaction, n int) []store.Interaction {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]store.Interaction, 0, len(primary)+len(secondary))
	for _, list := range [][]store.Interaction{primary, secondary} {
		for _, it := range list {
			if _, ok := seen[it.ID]; ok {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
