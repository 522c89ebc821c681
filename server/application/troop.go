package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// TroopService はユニットの訓練と訓練キューの管理を担当します。
// 訓練費用は開始時点で確定し、キャンセル時のみ全額返還されます。
type TroopService struct {
	ctx      context.Context // 完了タイマーの寿命を束ねるルートctx
	state    state.PlayerState
	data     *GameData
	notifier *Notifier
	food     *FoodSupplyReconciler
	clock    Clock

	delayOverride time.Duration // 0ならジョブごとの所要時間を使う
}

func NewTroopService(ctx context.Context, st state.PlayerState, data *GameData, notifier *Notifier, food *FoodSupplyReconciler, clock Clock) *TroopService {
	if clock == nil {
		clock = SystemClock()
	}
	return &TroopService{
		ctx:      ctx,
		state:    st,
		data:     data,
		notifier: notifier,
		food:     food,
		clock:    clock,
	}
}

// WithCompletionDelay はテスト用に完了タイマーの待ち時間を差し替える。
func (s *TroopService) WithCompletionDelay(d time.Duration) *TroopService {
	s.delayOverride = d
	return s
}

// TrainTroop は訓練ジョブをキューへ追加します。完了は非同期に通知されます。
func (s *TroopService) TrainTroop(ctx context.Context, actorID domain.ActorID, troopType string, quantity int) error {
	spec, ok := s.data.Troop(troopType)
	if !ok {
		return ErrInvalidTarget
	}
	cost := state.Resources{
		Gold:   spec.Cost.Gold * quantity,
		Elixir: spec.Cost.Elixir * quantity,
	}
	trainTime := spec.TrainTime * time.Duration(quantity)
	job := state.TrainingJob{
		ID:        uuid.NewString(),
		TroopType: troopType,
		Quantity:  quantity,
		DoneAt:    s.clock.Now().Add(trainTime),
	}
	if err := s.state.StartTraining(ctx, actorID, job, cost, TrainingQueueCap); err != nil {
		return err
	}

	go s.waitTraining(actorID, job.ID, trainTime)
	return nil
}

// CancelTraining はキューのエントリを取り消し、費用を全額返還します。
// queueIndexは1始まりです。
func (s *TroopService) CancelTraining(ctx context.Context, actorID domain.ActorID, queueIndex int) error {
	player, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return err
	}
	if queueIndex < 1 || queueIndex > len(player.TrainingQueue) {
		return state.ErrJobNotFound
	}
	pending := player.TrainingQueue[queueIndex-1]
	spec, ok := s.data.Troop(pending.TroopType)
	if !ok {
		return ErrInvalidTarget
	}
	refund := state.Resources{
		Gold:   spec.Cost.Gold * pending.Quantity,
		Elixir: spec.Cost.Elixir * pending.Quantity,
	}
	if _, err := s.state.CancelTraining(ctx, actorID, queueIndex, refund); err != nil {
		return err
	}
	return nil
}

// waitTraining は訓練完了タイマーです。キャンセル済みジョブのタイマーは
// 完了処理時のErrJobNotFoundで空振りに終わります。
func (s *TroopService) waitTraining(actorID domain.ActorID, jobID string, trainTime time.Duration) {
	delay := trainTime
	if s.delayOverride > 0 {
		delay = s.delayOverride
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return
	case <-timer.C:
	}

	job, err := s.state.FinishTraining(s.ctx, actorID, jobID)
	if err != nil {
		if !errors.Is(err, state.ErrJobNotFound) {
			slog.WarnContext(s.ctx, "failed to finish training", "actorID", actorID, "jobID", jobID, "err", err)
		}
		return
	}
	s.notifier.Push(s.ctx, actorID, domain.MsgTypeTrainingDone, TrainingCompletedEvent{
		TroopType: job.TroopType,
		Quantity:  job.Quantity,
	})
	// 訓練完了で消費予約が実消費へ移るため現況を再計算する
	s.food.Notify(s.ctx, actorID)
}
