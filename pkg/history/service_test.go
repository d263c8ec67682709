package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/events"
	"workflow-agent-be/pkg/retry"
	"workflow-agent-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = retry.Policy{Stage: "store", MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

// memoryBackend is a durable stand-in that can be switched off.
type memoryBackend struct {
	mu      sync.Mutex
	rows    map[string][]store.Interaction
	down    bool
	loads   int
	appends int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{rows: map[string][]store.Interaction{}}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) setDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *memoryBackend) Load(_ context.Context, sessionID string, limit int) ([]store.Interaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.down {
		return nil, errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	}
	all := b.rows[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]store.Interaction(nil), all...), nil
}

func (b *memoryBackend) Append(_ context.Context, it store.Interaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appends++
	if b.down {
		return errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	}
	b.rows[it.SessionID] = append(b.rows[it.SessionID], it)
	return nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.EventType())
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.types {
		if t == eventType {
			n++
		}
	}
	return n
}

func interaction(sessionID, prompt string, at time.Time) store.Interaction {
	return store.Interaction{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Prompt:    prompt,
		Response:  "ok",
		Intent:    store.IntentGeneral,
		CreatedAt: at,
	}
}

func newTestService(durable StorageBackend, window int) (*Service, *recordingPublisher) {
	pub := &recordingPublisher{}
	return NewService(durable, NewEphemeralBackend(time.Hour), window, fastPolicy, pub, logger.NopLogger{}), pub
}

func TestLoadUnknownSessionIsEmpty(t *testing.T) {
	svc, _ := newTestService(newMemoryBackend(), 10)

	got, err := svc.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, svc.Degraded())
}

func TestAppendThenLoadKeepsOrderAndWindow(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(newMemoryBackend(), 3)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Append(ctx, interaction("s1", fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	got, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"p2", "p3", "p4"}, []string{got[0].Prompt, got[1].Prompt, got[2].Prompt})
	assert.Equal(t, 5, pub.count(events.TypeInteractionRecorded))
}

func TestDurableOutageDegradesAndRecovers(t *testing.T) {
	ctx := context.Background()
	durable := newMemoryBackend()
	svc, pub := newTestService(durable, 10)
	base := time.Now().UTC()

	require.NoError(t, svc.Append(ctx, interaction("s1", "first", base)))

	durable.setDown(true)
	require.NoError(t, svc.Append(ctx, interaction("s1", "second", base.Add(time.Second))))
	assert.True(t, svc.Degraded())
	assert.Equal(t, 1+fastPolicy.MaxAttempts, durable.appends)

	got, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 2, "ephemeral mirror still serves both turns")
	assert.Equal(t, 1, pub.count(events.TypeHistoryDegraded))

	durable.setDown(false)
	got, err = svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, svc.Degraded())
	assert.Len(t, got, 2, "turn written during the outage is merged back in")
	assert.Equal(t, "second", got[1].Prompt)
	assert.Equal(t, 1, pub.count(events.TypeHistoryRecovered))
}

func TestUnreachableAtStartupRecoversOnFirstWrite(t *testing.T) {
	ctx := context.Background()
	durable := newMemoryBackend()
	svc, pub := newTestService(durable, 10)

	svc.ReportUnavailable(ctx, errors.New("ping database: connection refused"))
	assert.True(t, svc.Degraded())
	assert.Equal(t, 1, pub.count(events.TypeHistoryDegraded))

	require.NoError(t, svc.Append(ctx, interaction("s1", "first", time.Now())))
	assert.False(t, svc.Degraded())
	assert.Equal(t, 1, pub.count(events.TypeHistoryRecovered))
	assert.Len(t, durable.rows["s1"], 1)
}

func TestNoDurableBackendStartsDegraded(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil, 10)
	assert.True(t, svc.Degraded())

	require.NoError(t, svc.Append(ctx, interaction("s1", "hi", time.Now())))
	got, err := svc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.True(t, svc.Degraded())
}

func TestAppendRejectsUnidentifiedInteraction(t *testing.T) {
	svc, _ := newTestService(newMemoryBackend(), 10)
	err := svc.Append(context.Background(), store.Interaction{SessionID: "s1"})
	require.Error(t, err)
}

// stallingBackend cancels the caller mid-write and blocks until the
// cancellation arrives.
type stallingBackend struct {
	*memoryBackend
	cancel context.CancelFunc
}

func (b *stallingBackend) Append(ctx context.Context, _ store.Interaction) error {
	b.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestAppendCancelledDuringDurableWriteRecordsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	durable := &stallingBackend{memoryBackend: newMemoryBackend(), cancel: cancel}
	svc, pub := newTestService(durable, 10)

	err := svc.Append(ctx, interaction("s1", "half written", time.Now()))
	require.ErrorIs(t, err, context.Canceled)

	got, err := svc.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, svc.Degraded())
	assert.Zero(t, pub.count(events.TypeInteractionRecorded))
}

func TestLoadHonoursCancellation(t *testing.T) {
	svc, _ := newTestService(newMemoryBackend(), 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Load(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, svc.Degraded())
}

func TestMergeWindow(t *testing.T) {
	base := time.Now()
	a := store.Interaction{ID: "a", CreatedAt: base}
	b := store.Interaction{ID: "b", CreatedAt: base.Add(time.Second)}
	c := store.Interaction{ID: "c", CreatedAt: base.Add(2 * time.Second)}

	got := mergeWindow([]store.Interaction{a, c}, []store.Interaction{b, c}, 10)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})

	got = mergeWindow([]store.Interaction{a, b, c}, nil, 2)
	assert.Equal(t, "b", got[0].ID)
}
