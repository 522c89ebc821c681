package application

import (
	"context"
	"log/slog"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// FoodSupplyReconciler は食料の生産・消費の現況を権威的状態から再計算します。
// 差分更新は行わず、毎回ゼロから再計算することでドリフトを防ぎます。
type FoodSupplyReconciler struct {
	state    state.PlayerState
	data     *GameData
	notifier *Notifier
}

func NewFoodSupplyReconciler(st state.PlayerState, data *GameData, notifier *Notifier) *FoodSupplyReconciler {
	return &FoodSupplyReconciler{
		state:    st,
		data:     data,
		notifier: notifier,
	}
}

// ComputeStatus は現在の生産量・消費量を再計算します。純粋な読み取り関数であり、
// 状態変更がなければ何度呼んでも同一の結果を返します。
func (r *FoodSupplyReconciler) ComputeStatus(ctx context.Context, actorID domain.ActorID) (FoodSupplyStatus, error) {
	player, err := r.state.GetPlayer(ctx, actorID)
	if err != nil {
		return FoodSupplyStatus{}, err
	}

	var production float64
	for _, b := range player.Buildings {
		spec, ok := r.data.Building(b.Type)
		if !ok || spec.FoodProduction == 0 {
			continue
		}
		// 生産量は完了済みレベルのみ反映する。進行中のアップグレードは含めない
		production += spec.FoodProduction * float64(b.Level)
	}

	var usage float64
	for troopType, count := range player.Troops {
		spec, ok := r.data.Troop(troopType)
		if !ok {
			continue
		}
		usage += spec.FoodUpkeep * float64(count)
	}
	// 訓練中のユニットは開始時点から消費予約として計上する
	for _, job := range player.TrainingQueue {
		spec, ok := r.data.Troop(job.TroopType)
		if !ok {
			continue
		}
		usage += spec.FoodUpkeep * float64(job.Quantity)
	}

	return FoodSupplyStatus{
		Production: production,
		Usage:      usage,
		Paused:     usage > production,
	}, nil
}

// Notify は現況を再計算してアクターへプッシュします。
// 建設完了・訓練開始などのトリガーイベントと同一ターン内で呼び出すこと。
func (r *FoodSupplyReconciler) Notify(ctx context.Context, actorID domain.ActorID) {
	status, err := r.ComputeStatus(ctx, actorID)
	if err != nil {
		slog.WarnContext(ctx, "food supply recompute failed", "actorID", actorID, "err", err)
		return
	}
	r.notifier.Push(ctx, actorID, domain.MsgTypeFoodSupplyUpdate, status)
}
