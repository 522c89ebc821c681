package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// TravelState は移動中アクター1人分のカウントダウン状態です。
// アクターごとに最大1つだけ存在し、完了またはキャンセルで破棄されます。
type TravelState struct {
	ActorID    domain.ActorID
	TargetID   domain.ActorID
	StartedAt  time.Time
	TravelTime time.Duration

	cancelled atomic.Bool
}

// TravelScheduler は移動カウントダウンを所有し、tick通知と完了・キャンセルを駆動します。
// ポーリングループはアクターごとに1本のみ実行されます。
type TravelScheduler struct {
	mu      sync.Mutex
	travels map[domain.ActorID]*TravelState

	state    state.PlayerState
	notifier *Notifier
	clock    Clock

	pollInterval time.Duration
	travelTime   time.Duration
}

func NewTravelScheduler(st state.PlayerState, notifier *Notifier, clock Clock) *TravelScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &TravelScheduler{
		travels:      make(map[domain.ActorID]*TravelState),
		state:        st,
		notifier:     notifier,
		clock:        clock,
		pollInterval: time.Second,
		travelTime:   DefaultTravelTime,
	}
}

// WithIntervals はテスト用にポーリング間隔と移動時間を差し替える。
func (t *TravelScheduler) WithIntervals(poll, travel time.Duration) *TravelScheduler {
	t.pollInterval = poll
	t.travelTime = travel
	return t
}

// Start は移動を開始し、所要時間を返します。
// キャンセル済み・未回収のループが残っている間も新しい移動は開始できません。
func (t *TravelScheduler) Start(ctx context.Context, actorID, targetID domain.ActorID) (time.Duration, error) {
	if actorID == targetID {
		return 0, ErrInvalidTarget
	}
	if _, err := t.state.GetPlayer(ctx, targetID); err != nil {
		return 0, ErrInvalidTarget
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.travels[actorID]; ok {
		return 0, ErrAlreadyTraveling
	}

	travel := &TravelState{
		ActorID:    actorID,
		TargetID:   targetID,
		StartedAt:  t.clock.Now(),
		TravelTime: t.travelTime,
	}
	t.travels[actorID] = travel

	go t.pollLoop(context.WithoutCancel(ctx), travel)
	return travel.TravelTime, nil
}

// Cancel は移動を中断します。移動中でなければfalseを返します。
// キャンセルは次のポーリング時に観測され、完了通知は送信されません。
func (t *TravelScheduler) Cancel(ctx context.Context, actorID domain.ActorID) bool {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	travel, ok := t.travels[actorID]
	if !ok || travel.cancelled.Load() {
		return false
	}
	travel.cancelled.Store(true)
	return true
}

// Release は切断時の後始末です。進行中の移動を通知なしで破棄します。
func (t *TravelScheduler) Release(ctx context.Context, actorID domain.ActorID) {
	t.Cancel(ctx, actorID)
}

// IsTraveling はアクターが移動中かを返します。
func (t *TravelScheduler) IsTraveling(actorID domain.ActorID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.travels[actorID]
	return ok
}

// pollLoop は1移動分のポーリングループです。内部フォールトが発生しても
// TravelStateを破棄してから終了します。
func (t *TravelScheduler) pollLoop(ctx context.Context, travel *TravelState) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "travel poll loop panicked", "actorID", travel.ActorID, "panic", r)
			t.reap(travel.ActorID)
		}
	}()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.reap(travel.ActorID)
			return
		case <-ticker.C:
			if travel.cancelled.Load() {
				t.reap(travel.ActorID)
				return
			}
			remaining := travel.TravelTime - t.clock.Since(travel.StartedAt)
			if remaining <= 0 {
				t.reap(travel.ActorID)
				t.notifier.Push(ctx, travel.ActorID, domain.MsgTypeTravelUpdate, TravelUpdateEvent{
					Complete: true,
					TargetID: travel.TargetID,
				})
				return
			}
			t.notifier.Push(ctx, travel.ActorID, domain.MsgTypeTravelUpdate, TravelUpdateEvent{
				Complete:  false,
				Remaining: remaining.Seconds(),
			})
		}
	}
}

// reap はTravelStateを破棄し、次の移動開始を可能にします。
func (t *TravelScheduler) reap(actorID domain.ActorID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.travels, actorID)
}
