package memory

import (
	"context"
	"sync"
	"time"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// ConcurrentStore は Store をラップし、排他制御付きで PlayerState を実装する。
type ConcurrentStore struct {
	base *Store
	clk  func() time.Time
	mu   sync.RWMutex
}

// NewConcurrentStore は新しい ConcurrentStore を生成する。
func NewConcurrentStore() *ConcurrentStore {
	return &ConcurrentStore{
		base: NewStore(),
		clk:  time.Now,
	}
}

// WithClock はテスト用に時間ソースを差し替える。
func (c *ConcurrentStore) WithClock(clock func() time.Time) *ConcurrentStore {
	if clock != nil {
		c.clk = clock
	}
	return c
}

func (c *ConcurrentStore) GetPlayer(ctx context.Context, actorID domain.ActorID) (state.PlayerData, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	player, err := c.base.getPlayer(actorID)
	if err != nil {
		return state.PlayerData{}, err
	}
	return copyPlayer(player), nil
}

func (c *ConcurrentStore) Restore(ctx context.Context, data state.PlayerData) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base.restore(data)
	return nil
}

func (c *ConcurrentStore) All(ctx context.Context) ([]state.PlayerData, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.all(), nil
}

func (c *ConcurrentStore) PlaceBuilding(ctx context.Context, actorID domain.ActorID, b state.Building, cost state.Resources) (state.Building, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyPlaceBuilding(actorID, b, cost, c.now())
}

func (c *ConcurrentStore) StartUpgrade(ctx context.Context, actorID domain.ActorID, buildingID string, cost state.Resources, doneAt time.Time) (state.Building, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyStartUpgrade(actorID, buildingID, cost, doneAt)
}

func (c *ConcurrentStore) FinishUpgrade(ctx context.Context, actorID domain.ActorID, buildingID string) (state.Building, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyFinishUpgrade(actorID, buildingID)
}

func (c *ConcurrentStore) Collect(ctx context.Context, actorID domain.ActorID, buildingID string, ratePerSecond float64, storageCap int) (int, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyCollect(actorID, buildingID, ratePerSecond, storageCap, c.now())
}

func (c *ConcurrentStore) StartTraining(ctx context.Context, actorID domain.ActorID, job state.TrainingJob, cost state.Resources, queueCap int) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyStartTraining(actorID, job, cost, queueCap)
}

func (c *ConcurrentStore) CancelTraining(ctx context.Context, actorID domain.ActorID, queueIndex int, refund state.Resources) (state.TrainingJob, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyCancelTraining(actorID, queueIndex, refund)
}

func (c *ConcurrentStore) FinishTraining(ctx context.Context, actorID domain.ActorID, jobID string) (state.TrainingJob, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyFinishTraining(actorID, jobID)
}

func (c *ConcurrentStore) AddTroops(ctx context.Context, actorID domain.ActorID, troopType string, count int) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyAddTroops(actorID, troopType, count)
}

func (c *ConcurrentStore) RemoveTroops(ctx context.Context, actorID domain.ActorID, troopType string, count int) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyRemoveTroops(actorID, troopType, count)
}

func (c *ConcurrentStore) AddResources(ctx context.Context, actorID domain.ActorID, r state.Resources) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyAddResources(actorID, r)
}

func (c *ConcurrentStore) Debit(ctx context.Context, actorID domain.ActorID, cost state.Resources) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applyDebit(actorID, cost)
}

func (c *ConcurrentStore) SetAlliance(ctx context.Context, actorID domain.ActorID, allianceID string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.applySetAlliance(actorID, allianceID)
}

func (c *ConcurrentStore) now() time.Time {
	if c.clk == nil {
		return time.Now()
	}
	return c.clk()
}

var _ state.PlayerState = (*ConcurrentStore)(nil)
