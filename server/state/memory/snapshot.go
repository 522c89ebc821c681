package memory

import (
	"context"
	"sync"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// SnapshotStore はプロセス内完結のstate.PlayerStore実装です。
// redisが構成されていない場合のフォールバックで、再起動で消えます。
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[domain.ActorID]state.PlayerData
}

var _ state.PlayerStore = (*SnapshotStore)(nil)

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[domain.ActorID]state.PlayerData),
	}
}

func (s *SnapshotStore) Load(_ context.Context, actorID domain.ActorID) (*state.PlayerData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[actorID]
	if !ok {
		return nil, nil
	}
	return clonePlayer(&data), nil
}

func (s *SnapshotStore) Save(_ context.Context, data state.PlayerData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[data.ActorID] = copyPlayer(&data)
	return nil
}

func (s *SnapshotStore) Delete(_ context.Context, actorID domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, actorID)
	return nil
}

func (s *SnapshotStore) Close() error {
	return nil
}
