package adapterredis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// Store はredisをバックエンドとするstate.PlayerStore実装です。
// プレイヤー状態をJSONスナップショットとして保存します。
type Store struct {
	client *redis.Client
}

var _ state.PlayerStore = (*Store)(nil)

func NewStore(addr string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Store{client: client}
}

// NewStoreFromClient はテスト用に既存クライアントを受け取ります。
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func playerKey(actorID domain.ActorID) string {
	return fmt.Sprintf("player:%d", actorID)
}

func (s *Store) Load(ctx context.Context, actorID domain.ActorID) (*state.PlayerData, error) {
	raw, err := s.client.Get(ctx, playerKey(actorID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var data state.PlayerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode player snapshot: %w", err)
	}
	return &data, nil
}

func (s *Store) Save(ctx context.Context, data state.PlayerData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode player snapshot: %w", err)
	}
	// スナップショットは上書き、TTLなし
	if err := s.client.Set(ctx, playerKey(data.ActorID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, actorID domain.ActorID) error {
	if err := s.client.Del(ctx, playerKey(actorID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
