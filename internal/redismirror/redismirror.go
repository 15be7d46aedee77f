// Package redismirror publishes the engine's live state — active scene,
// effect, palette, master brightness, and rolling FPS — to Redis, for
// external dashboards or a second engine instance to observe without
// polling the control UDP port. The key-namespacing and connection-pool
// setup follows the same scoped key/value context-store pattern used
// elsewhere for node/flow/global scopes, narrowed here to one fixed state
// hash plus a change-notification channel, on github.com/redis/go-redis/v9.
package redismirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection and namespacing settings.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

// EngineState is the snapshot published on every mirrored tick.
type EngineState struct {
	SceneID          int     `json:"scene_id"`
	EffectID         int     `json:"effect_id"`
	PaletteID        string  `json:"palette_id"`
	MasterBrightness int     `json:"master_brightness"`
	SpeedPercent     int     `json:"speed_percent"`
	FPS              float64 `json:"fps"`
	FrameCount       uint64  `json:"frame_count"`
	OverrunCount     uint64  `json:"overrun_count"`
	UpdatedAtUnixMs  int64   `json:"updated_at_unix_ms"`
}

// Mirror publishes EngineState to a fixed Redis key and notifies a pub/sub
// channel so subscribers don't need to poll.
type Mirror struct {
	client  *redis.Client
	stateKey string
	channel  string
}

// New connects to Redis and returns a Mirror. KeyPrefix defaults to
// "ledengine".
func New(cfg Config) (*Mirror, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = 2
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ledengine"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redismirror: connect: %w", err)
	}

	return &Mirror{
		client:   client,
		stateKey: cfg.KeyPrefix + ":engine:state",
		channel:  cfg.KeyPrefix + ":engine:changes",
	}, nil
}

// Publish writes the current state and notifies subscribers on the change
// channel. Errors are the caller's concern — a mirror outage must never
// affect the frame loop, so callers should log and continue, not retry
// inline.
func (m *Mirror) Publish(ctx context.Context, state EngineState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redismirror: marshal state: %w", err)
	}
	if err := m.client.Set(ctx, m.stateKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redismirror: set state: %w", err)
	}
	if err := m.client.Publish(ctx, m.channel, data).Err(); err != nil {
		return fmt.Errorf("redismirror: publish: %w", err)
	}
	return nil
}

// Current reads the last published state.
func (m *Mirror) Current(ctx context.Context) (*EngineState, error) {
	val, err := m.client.Get(ctx, m.stateKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redismirror: get state: %w", err)
	}
	var state EngineState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("redismirror: unmarshal state: %w", err)
	}
	return &state, nil
}

// Subscribe returns a channel of raw JSON-encoded EngineState payloads
// published on state changes. Callers unmarshal with json.Unmarshal into
// EngineState themselves.
func (m *Mirror) Subscribe(ctx context.Context) <-chan *redis.Message {
	sub := m.client.Subscribe(ctx, m.channel)
	return sub.Channel()
}

// Ping tests the Redis connection, for the health package's liveness check.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
