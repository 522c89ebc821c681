package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"stronghold/server/application"
	"stronghold/server/domain"
	"stronghold/server/state"
	"stronghold/server/state/memory"
)

// fakeClock はテスト用の手動クロックです。Advanceを呼ぶまで時間は進みません。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// world はアプリケーション層一式を組み立てたテストフィクスチャです。
// 戦闘・移動のループは高速tickで回し、時刻判定はfakeClockで制御します。
type world struct {
	clock    *fakeClock
	pubsub   *domain.SimplePubSub
	state    *memory.ConcurrentStore
	store    *memory.SnapshotStore
	data     *application.GameData
	notifier *application.Notifier
	food     *application.FoodSupplyReconciler
	building *application.BuildingService
	troop    *application.TroopService
	alliance *application.AllianceService
	battle   *application.BattleEngine
	travel   *application.TravelScheduler
	limiter  *application.RateLimiter
	gateway  *application.Gateway
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()

	clock := newFakeClock()
	pubsub := domain.NewSimplePubSub()
	playerState := memory.NewConcurrentStore().WithClock(clock.Now)
	store := memory.NewSnapshotStore()
	data := application.NewGameData()
	notifier := application.NewNotifier(pubsub)

	food := application.NewFoodSupplyReconciler(playerState, data, notifier)
	building := application.NewBuildingService(ctx, playerState, data, notifier, food, clock)
	troop := application.NewTroopService(ctx, playerState, data, notifier, food, clock)
	alliance := application.NewAllianceService(playerState)
	battle := application.NewBattleEngine(playerState, data, notifier, clock).
		WithTickInterval(10*time.Millisecond, 50*time.Millisecond)
	travel := application.NewTravelScheduler(playerState, notifier, clock).
		WithIntervals(10*time.Millisecond, 50*time.Millisecond)
	limiter := application.NewRateLimiter(clock)

	gateway, err := application.NewGateway(
		limiter, playerState, store, data, food,
		building, troop, alliance, battle, travel, clock,
	)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	return &world{
		clock:    clock,
		pubsub:   pubsub,
		state:    playerState,
		store:    store,
		data:     data,
		notifier: notifier,
		food:     food,
		building: building,
		troop:    troop,
		alliance: alliance,
		battle:   battle,
		travel:   travel,
		limiter:  limiter,
		gateway:  gateway,
	}
}

// addPlayer は初期状態のプレイヤーを投入し、mutateで任意の変更を加えます。
func (w *world) addPlayer(t *testing.T, actorID domain.ActorID, mutate func(*state.PlayerData)) state.PlayerData {
	t.Helper()
	player := w.data.DefaultPlayer(actorID, w.clock.Now())
	if mutate != nil {
		mutate(&player)
	}
	if err := w.state.Restore(context.Background(), player); err != nil {
		t.Fatalf("failed to restore player: %v", err)
	}
	return player
}

// dispatch はゲートウェイへ1コマンドを送ります。
func (w *world) dispatch(t *testing.T, actorID domain.ActorID, action string, args any) (*domain.Response, bool) {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("failed to marshal args: %v", err)
		}
		raw = encoded
	}
	return w.gateway.Dispatch(context.Background(), actorID, &domain.Command{Action: action, Seq: 1, Args: raw})
}

// waitMessage は指定種別のプッシュメッセージを待ち、そのペイロードを返します。
// 他種別のメッセージは読み飛ばします。
func waitMessage(t *testing.T, msgCh <-chan domain.Message, msgType string) json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-msgCh:
			var envelope struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(msg.Data, &envelope); err != nil {
				t.Fatalf("failed to decode server message: %v", err)
			}
			if envelope.Type == msgType {
				return envelope.Payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q message", msgType)
		}
	}
}

// findBuilding は種別で最初の建物を探します。
func findBuilding(t *testing.T, player state.PlayerData, buildingType string) state.Building {
	t.Helper()
	for _, b := range player.Buildings {
		if b.Type == buildingType {
			return b
		}
	}
	t.Fatalf("player %d has no %s", player.ActorID, buildingType)
	return state.Building{}
}
