package pause

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const globalKey = "pause:status:global"

// Manager controls the booking pause switches stored in Redis. A global
// switch halts all charge attempts; per-campaign switches halt a single
// campaign without touching the rest.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new pause manager
func NewManager(redis *redis.Client) *Manager {
	return &Manager{
		redis: redis,
	}
}

// State describes an active pause
type State struct {
	Reason   string `json:"reason"`
	PausedBy string `json:"paused_by"`
	PausedAt int64  `json:"paused_at"`
}

// IsPaused checks the global switch first, then the campaign switch
func (m *Manager) IsPaused(ctx context.Context, campaignID uint64) bool {
	val, err := m.redis.Get(ctx, globalKey).Result()
	if err == nil && val == "1" {
		return true
	}

	val, err = m.redis.Get(ctx, campaignKey(campaignID)).Result()
	if err != nil {
		return false
	}

	return val == "1"
}

// GetState gets the pause state for a campaign, falling back to the global state
func (m *Manager) GetState(ctx context.Context, campaignID uint64) *State {
	for _, key := range []string{stateKey(campaignKey(campaignID)), stateKey(globalKey)} {
		data, err := m.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var state State
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		return &state
	}

	return &State{Reason: "booking paused"}
}

// PauseAll flips the global switch
func (m *Manager) PauseAll(ctx context.Context, state *State) error {
	return m.set(ctx, globalKey, state, 0)
}

// PauseCampaign flips the switch for a single campaign
func (m *Manager) PauseCampaign(ctx context.Context, campaignID uint64, state *State) error {
	return m.set(ctx, campaignKey(campaignID), state, 0)
}

// PauseCampaignFor pauses a campaign with a TTL so the switch clears itself
func (m *Manager) PauseCampaignFor(ctx context.Context, campaignID uint64, state *State, ttl time.Duration) error {
	return m.set(ctx, campaignKey(campaignID), state, ttl)
}

// ResumeAll clears the global switch
func (m *Manager) ResumeAll(ctx context.Context) error {
	return m.clear(ctx, globalKey)
}

// ResumeCampaign clears the switch for a single campaign
func (m *Manager) ResumeCampaign(ctx context.Context, campaignID uint64) error {
	return m.clear(ctx, campaignKey(campaignID))
}

// ListPaused returns the pause state for every paused campaign
func (m *Manager) ListPaused(ctx context.Context) (map[uint64]*State, error) {
	result := make(map[uint64]*State)

	iter := m.redis.Scan(ctx, 0, "pause:status:campaign:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		var campaignID uint64
		if _, err := fmt.Sscanf(key, "pause:status:campaign:%d", &campaignID); err != nil {
			continue
		}

		result[campaignID] = m.GetState(ctx, campaignID)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan pause keys: %w", err)
	}

	return result, nil
}

func (m *Manager) set(ctx context.Context, key string, state *State, ttl time.Duration) error {
	if err := m.redis.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pause status: %w", err)
	}

	if state == nil {
		return nil
	}
	if state.PausedAt == 0 {
		state.PausedAt = time.Now().Unix()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal pause state: %w", err)
	}

	if err := m.redis.Set(ctx, stateKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pause state: %w", err)
	}

	return nil
}

func (m *Manager) clear(ctx context.Context, key string) error {
	if err := m.redis.Del(ctx, key, stateKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear pause: %w", err)
	}
	return nil
}

func campaignKey(campaignID uint64) string {
	return fmt.Sprintf("pause:status:campaign:%d", campaignID)
}

func stateKey(key string) string {
	return key + ":state"
}
