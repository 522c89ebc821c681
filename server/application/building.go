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

// BuildingService は建設・アップグレード・資源回収を担当します。
// アップグレード完了は遅延イベントとして処理され、完了時点で初めて
// レベルと生産量が反映されます。
type BuildingService struct {
	ctx      context.Context // 完了タイマーの寿命を束ねるルートctx
	state    state.PlayerState
	data     *GameData
	notifier *Notifier
	food     *FoodSupplyReconciler
	clock    Clock

	delayOverride time.Duration // 0なら種別ごとの所要時間を使う
}

func NewBuildingService(ctx context.Context, st state.PlayerState, data *GameData, notifier *Notifier, food *FoodSupplyReconciler, clock Clock) *BuildingService {
	if clock == nil {
		clock = SystemClock()
	}
	return &BuildingService{
		ctx:      ctx,
		state:    st,
		data:     data,
		notifier: notifier,
		food:     food,
		clock:    clock,
	}
}

// WithCompletionDelay はテスト用に完了タイマーの待ち時間を差し替える。
func (s *BuildingService) WithCompletionDelay(d time.Duration) *BuildingService {
	s.delayOverride = d
	return s
}

// PlaceBuilding は建物を配置します。建設費用はこの時点で確定します。
func (s *BuildingService) PlaceBuilding(ctx context.Context, actorID domain.ActorID, buildingType string, pos domain.Vector3) (state.Building, error) {
	spec, ok := s.data.Building(buildingType)
	if !ok {
		return state.Building{}, ErrInvalidTarget
	}
	building := state.Building{
		ID:       uuid.NewString(),
		Type:     buildingType,
		Level:    1,
		Position: pos,
	}
	placed, err := s.state.PlaceBuilding(ctx, actorID, building, spec.BaseCost)
	if err != nil {
		return state.Building{}, err
	}
	return placed, nil
}

// UpgradeBuilding はアップグレードを開始します。完了は非同期に通知されます。
func (s *BuildingService) UpgradeBuilding(ctx context.Context, actorID domain.ActorID, buildingID string) error {
	player, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return err
	}
	var target *state.Building
	for i := range player.Buildings {
		if player.Buildings[i].ID == buildingID {
			target = &player.Buildings[i]
			break
		}
	}
	if target == nil {
		return state.ErrBuildingNotFound
	}
	spec, ok := s.data.Building(target.Type)
	if !ok {
		return ErrInvalidTarget
	}

	cost := s.data.UpgradeCostFor(spec, target.Level)
	doneAt := s.clock.Now().Add(spec.UpgradeTime)
	if _, err := s.state.StartUpgrade(ctx, actorID, buildingID, cost, doneAt); err != nil {
		return err
	}

	go s.waitUpgrade(actorID, buildingID, spec)
	return nil
}

// CollectResources は前回回収からの産出分を回収します。
func (s *BuildingService) CollectResources(ctx context.Context, actorID domain.ActorID, buildingID string) (int, error) {
	player, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return 0, err
	}
	for _, b := range player.Buildings {
		if b.ID != buildingID {
			continue
		}
		spec, ok := s.data.Building(b.Type)
		if !ok || spec.GoldPerSecond == 0 {
			return 0, ErrInvalidTarget
		}
		rate := spec.GoldPerSecond * float64(b.Level)
		return s.state.Collect(ctx, actorID, buildingID, rate, spec.StorageCap)
	}
	return 0, state.ErrBuildingNotFound
}

// waitUpgrade はアップグレード完了タイマーです。完了時に状態を確定し、
// 完了通知と（農場の場合）食料現況の再計算プッシュを行います。
func (s *BuildingService) waitUpgrade(actorID domain.ActorID, buildingID string, spec BuildingSpec) {
	delay := spec.UpgradeTime
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

	building, err := s.state.FinishUpgrade(s.ctx, actorID, buildingID)
	if err != nil {
		if !errors.Is(err, state.ErrBuildingNotFound) {
			slog.WarnContext(s.ctx, "failed to finish upgrade", "actorID", actorID, "buildingID", buildingID, "err", err)
		}
		return
	}
	s.notifier.Push(s.ctx, actorID, domain.MsgTypeUpgradeDone, UpgradeCompletedEvent{
		BuildingID: building.ID,
		Type:       building.Type,
		Level:      building.Level,
	})
	// 生産量はアップグレード完了時点で変化する
	if spec.FoodProduction > 0 {
		s.food.Notify(s.ctx, actorID)
	}
}
