package pause

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestManager_PauseResumeCampaign(t *testing.T) {
	client, _ := setupTestRedis(t)

	m := NewManager(client)
	ctx := context.Background()
	campaignID := uint64(1)

	// Initially not paused
	assert.False(t, m.IsPaused(ctx, campaignID))

	state := &State{
		Reason:   "airline maintenance window",
		PausedBy: "ops",
	}
	err := m.PauseCampaign(ctx, campaignID, state)
	assert.NoError(t, err)

	assert.True(t, m.IsPaused(ctx, campaignID))
	assert.False(t, m.IsPaused(ctx, 2))

	got := m.GetState(ctx, campaignID)
	assert.Equal(t, "airline maintenance window", got.Reason)
	assert.Equal(t, "ops", got.PausedBy)
	assert.NotZero(t, got.PausedAt)

	err = m.ResumeCampaign(ctx, campaignID)
	assert.NoError(t, err)
	assert.False(t, m.IsPaused(ctx, campaignID))
}

func TestManager_GlobalPause(t *testing.T) {
	client, _ := setupTestRedis(t)

	m := NewManager(client)
	ctx := context.Background()

	err := m.PauseAll(ctx, &State{Reason: "provider incident"})
	assert.NoError(t, err)

	// Every campaign is paused while the global switch is on
	assert.True(t, m.IsPaused(ctx, 1))
	assert.True(t, m.IsPaused(ctx, 42))

	got := m.GetState(ctx, 42)
	assert.Equal(t, "provider incident", got.Reason)

	err = m.ResumeAll(ctx)
	assert.NoError(t, err)
	assert.False(t, m.IsPaused(ctx, 1))
}

func TestManager_PauseCampaignFor(t *testing.T) {
	client, mr := setupTestRedis(t)

	m := NewManager(client)
	ctx := context.Background()
	campaignID := uint64(7)

	err := m.PauseCampaignFor(ctx, campaignID, &State{Reason: "spike"}, time.Minute)
	assert.NoError(t, err)
	assert.True(t, m.IsPaused(ctx, campaignID))

	// The switch clears itself once the TTL elapses
	mr.FastForward(2 * time.Minute)
	assert.False(t, m.IsPaused(ctx, campaignID))
}

func TestManager_ListPaused(t *testing.T) {
	client, _ := setupTestRedis(t)

	m := NewManager(client)
	ctx := context.Background()

	assert.NoError(t, m.PauseCampaign(ctx, 1, &State{Reason: "a"}))
	assert.NoError(t, m.PauseCampaign(ctx, 2, &State{Reason: "b"}))

	paused, err := m.ListPaused(ctx)
	assert.NoError(t, err)
	assert.Len(t, paused, 2)
	assert.Equal(t, "a", paused[1].Reason)
	assert.Equal(t, "b", paused[2].Reason)
}

func TestManager_GetStateDefault(t *testing.T) {
	client, _ := setupTestRedis(t)

	m := NewManager(client)
	got := m.GetState(context.Background(), 99)
	assert.Equal(t, "booking paused", got.Reason)
}
