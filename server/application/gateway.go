package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"stronghold/server/domain"
	"stronghold/server/state"
)

var (
	// errDropCommand は検証失敗などで応答なしに破棄するコマンドを示します。
	errDropCommand = errors.New("application: command dropped")
	// errInternalFault はハンドラ内の予期しないフォールトを示します。
	errInternalFault = errors.New("application: internal fault")
)

const disconnectSaveTimeout = 5 * time.Second

type handlerFunc func(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error)

// actionSpec は1アクションの受付条件とハンドラです。
type actionSpec struct {
	limit            int  // 1秒あたりの許容回数
	silentLimit      bool // レート超過時に応答を返さずドロップする
	respondOnSuccess bool
	handle           handlerFunc
}

// Gateway は検証・レート制限済みのコマンドを各サービスへ振り分け、
// 一様な応答エンベロープを返します。domain.Dispatcherとdomain.Lifecycleを実装します。
type Gateway struct {
	limiter  *RateLimiter
	state    state.PlayerState
	store    state.PlayerStore
	data     *GameData
	food     *FoodSupplyReconciler
	building *BuildingService
	troop    *TroopService
	alliance *AllianceService
	battle   *BattleEngine
	travel   *TravelScheduler
	clock    Clock

	actions map[string]actionSpec
}

func NewGateway(
	limiter *RateLimiter,
	st state.PlayerState,
	store state.PlayerStore,
	data *GameData,
	food *FoodSupplyReconciler,
	building *BuildingService,
	troop *TroopService,
	alliance *AllianceService,
	battle *BattleEngine,
	travel *TravelScheduler,
	clock Clock,
) (*Gateway, error) {
	if limiter == nil || st == nil || store == nil || data == nil || food == nil ||
		building == nil || troop == nil || alliance == nil || battle == nil || travel == nil {
		return nil, errors.New("gateway: missing dependencies")
	}
	if clock == nil {
		clock = SystemClock()
	}
	g := &Gateway{
		limiter:  limiter,
		state:    st,
		store:    store,
		data:     data,
		food:     food,
		building: building,
		troop:    troop,
		alliance: alliance,
		battle:   battle,
		travel:   travel,
		clock:    clock,
	}
	g.actions = g.actionTable()
	return g, nil
}

// Dispatch はコマンド1件を処理します。同一アクターのコマンドは
// 呼び出し側（セッションのreadLoop）で直列化されています。
func (g *Gateway) Dispatch(ctx context.Context, actorID domain.ActorID, cmd *domain.Command) (*domain.Response, bool) {
	spec, ok := g.actions[cmd.Action]
	if !ok {
		slog.WarnContext(ctx, "unknown action, dropped", "actorID", actorID, "action", cmd.Action)
		return nil, false
	}

	if !g.limiter.Allow(actorID, cmd.Action, spec.limit) {
		if spec.silentLimit {
			return nil, false
		}
		return &domain.Response{Seq: cmd.Seq, Success: false, Error: CodeRateLimited}, true
	}

	payload, err := g.safeHandle(ctx, spec, actorID, cmd.Args)
	if errors.Is(err, errDropCommand) {
		slog.WarnContext(ctx, "command validation failed, dropped", "actorID", actorID, "action", cmd.Action)
		return nil, false
	}
	if err != nil {
		return &domain.Response{Seq: cmd.Seq, Success: false, Error: codeFor(err)}, true
	}
	if !spec.respondOnSuccess {
		return nil, false
	}
	return &domain.Response{Seq: cmd.Seq, Success: true, Payload: payload}, true
}

// safeHandle はハンドラ内のフォールトをコマンド単位に封じ込めます。
// 1コマンドの失敗がディスパッチループや他アクターへ波及してはならない。
func (g *Gateway) safeHandle(ctx context.Context, spec actionSpec, actorID domain.ActorID, args json.RawMessage) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "command handler panicked", "actorID", actorID, "panic", r)
			payload = nil
			err = errInternalFault
		}
	}()
	return spec.handle(ctx, actorID, args)
}

func decode[T any](raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// アクションごとの引数ペイロード
type placeBuildingArgs struct {
	BuildingType string         `json:"buildingType"`
	Position     domain.Vector3 `json:"position"`
}

type buildingArgs struct {
	BuildingID string `json:"buildingId"`
}

type trainTroopArgs struct {
	TroopType string `json:"troopType"`
	Quantity  int    `json:"quantity"`
}

type cancelTrainingArgs struct {
	QueueIndex int `json:"queueIndex"`
}

type startBattleArgs struct {
	DefenderID domain.ActorID `json:"defenderId"`
}

type deployArgs struct {
	BattleID string         `json:"battleId"`
	Type     string         `json:"type"`
	Position domain.Vector3 `json:"position"`
}

type createAllianceArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type allianceArgs struct {
	AllianceID string `json:"allianceId"`
}

type donateArgs struct {
	RecipientID domain.ActorID `json:"recipientId"`
	TroopType   string         `json:"troopType"`
	Count       int            `json:"count"`
}

type travelArgs struct {
	TargetID domain.ActorID `json:"targetId"`
}

func (g *Gateway) actionTable() map[string]actionSpec {
	return map[string]actionSpec{
		"PlaceBuilding":    {limit: 2, respondOnSuccess: true, handle: g.handlePlaceBuilding},
		"UpgradeBuilding":  {limit: 2, respondOnSuccess: true, handle: g.handleUpgradeBuilding},
		"CollectResources": {limit: 10, respondOnSuccess: true, handle: g.handleCollectResources},
		"TrainTroop":       {limit: 5, respondOnSuccess: true, handle: g.handleTrainTroop},
		"CancelTraining":   {limit: 5, respondOnSuccess: true, handle: g.handleCancelTraining},
		"StartBattle":      {limit: 1, respondOnSuccess: true, handle: g.handleStartBattle},
		"DeployTroop":      {limit: 30, silentLimit: true, handle: g.handleDeployTroop},
		"DeploySpell":      {limit: 30, silentLimit: true, handle: g.handleDeploySpell},
		"CreateAlliance":   {limit: 1, respondOnSuccess: true, handle: g.handleCreateAlliance},
		"JoinAlliance":     {limit: 2, respondOnSuccess: true, handle: g.handleJoinAlliance},
		"LeaveAlliance":    {limit: 2, respondOnSuccess: true, handle: g.handleLeaveAlliance},
		"DonateTroops":     {limit: 5, respondOnSuccess: true, handle: g.handleDonateTroops},
		"StartTravel":      {limit: 2, respondOnSuccess: true, handle: g.handleStartTravel},
		"CancelTravel":     {limit: 2, respondOnSuccess: true, handle: g.handleCancelTravel},
	}
}

func (g *Gateway) handlePlaceBuilding(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[placeBuildingArgs](args)
	if !ok || !BoundedString(a.BuildingType, MaxTypeLen) || !ValidVector3(a.Position) {
		return nil, errDropCommand
	}
	placed, err := g.building.PlaceBuilding(ctx, actorID, a.BuildingType, a.Position)
	if err != nil {
		return nil, err
	}
	// 生産・消費は共有可変状態であり、クライアントは権威的に追跡しない
	if spec, ok := g.data.Building(placed.Type); ok && spec.FoodProduction > 0 {
		g.food.Notify(ctx, actorID)
	}
	return map[string]any{"building": placed}, nil
}

func (g *Gateway) handleUpgradeBuilding(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[buildingArgs](args)
	if !ok || !BoundedString(a.BuildingID, MaxIDLen) {
		return nil, errDropCommand
	}
	if err := g.building.UpgradeBuilding(ctx, actorID, a.BuildingID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (g *Gateway) handleCollectResources(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[buildingArgs](args)
	if !ok || !BoundedString(a.BuildingID, MaxIDLen) {
		return nil, errDropCommand
	}
	amount, err := g.building.CollectResources(ctx, actorID, a.BuildingID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"amount": amount}, nil
}

func (g *Gateway) handleTrainTroop(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[trainTroopArgs](args)
	if !ok || !BoundedString(a.TroopType, MaxTypeLen) || !IntInRange(a.Quantity, 1, MaxTroopQuantity) {
		return nil, errDropCommand
	}
	if err := g.troop.TrainTroop(ctx, actorID, a.TroopType, a.Quantity); err != nil {
		return nil, err
	}
	// 訓練開始時点で消費予約が発生する
	g.food.Notify(ctx, actorID)
	return nil, nil
}

func (g *Gateway) handleCancelTraining(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[cancelTrainingArgs](args)
	if !ok || !IntInRange(a.QueueIndex, 1, MaxQueueIndex) {
		return nil, errDropCommand
	}
	if err := g.troop.CancelTraining(ctx, actorID, a.QueueIndex); err != nil {
		return nil, err
	}
	g.food.Notify(ctx, actorID)
	return nil, nil
}

func (g *Gateway) handleStartBattle(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[startBattleArgs](args)
	if !ok || a.DefenderID <= 0 {
		return nil, errDropCommand
	}
	battleID, err := g.battle.Start(ctx, actorID, a.DefenderID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"battleId": battleID}, nil
}

func (g *Gateway) handleDeployTroop(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[deployArgs](args)
	if !ok || !BoundedString(a.BattleID, MaxIDLen) || !BoundedString(a.Type, MaxTypeLen) || !ValidVector3(a.Position) {
		return nil, errDropCommand
	}
	return nil, g.battle.DeployTroop(ctx, actorID, a.BattleID, a.Type, a.Position)
}

func (g *Gateway) handleDeploySpell(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[deployArgs](args)
	if !ok || !BoundedString(a.BattleID, MaxIDLen) || !BoundedString(a.Type, MaxTypeLen) || !ValidVector3(a.Position) {
		return nil, errDropCommand
	}
	return nil, g.battle.DeploySpell(ctx, actorID, a.BattleID, a.Type, a.Position)
}

func (g *Gateway) handleCreateAlliance(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[createAllianceArgs](args)
	if !ok || !BoundedString(a.Name, MaxAllianceName) || len(a.Description) > MaxDescriptionLen {
		return nil, errDropCommand
	}
	allianceID, err := g.alliance.Create(ctx, actorID, a.Name, a.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{"allianceId": allianceID}, nil
}

func (g *Gateway) handleJoinAlliance(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[allianceArgs](args)
	if !ok || !BoundedString(a.AllianceID, MaxIDLen) {
		return nil, errDropCommand
	}
	return nil, g.alliance.Join(ctx, actorID, a.AllianceID)
}

func (g *Gateway) handleLeaveAlliance(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[allianceArgs](args)
	if !ok || !BoundedString(a.AllianceID, MaxIDLen) {
		return nil, errDropCommand
	}
	return nil, g.alliance.Leave(ctx, actorID, a.AllianceID)
}

func (g *Gateway) handleDonateTroops(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[donateArgs](args)
	if !ok || a.RecipientID <= 0 || !BoundedString(a.TroopType, MaxTypeLen) || !IntInRange(a.Count, 1, MaxDonationCount) {
		return nil, errDropCommand
	}
	return nil, g.alliance.Donate(ctx, actorID, a.RecipientID, a.TroopType, a.Count)
}

func (g *Gateway) handleStartTravel(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	a, ok := decode[travelArgs](args)
	if !ok || a.TargetID <= 0 {
		return nil, errDropCommand
	}
	travelTime, err := g.travel.Start(ctx, actorID, a.TargetID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"travelTime": travelTime.Seconds()}, nil
}

func (g *Gateway) handleCancelTravel(ctx context.Context, actorID domain.ActorID, args json.RawMessage) (any, error) {
	if !g.travel.Cancel(ctx, actorID) {
		return nil, ErrInvalidState
	}
	return nil, nil
}

// syncPayload は接続確立時にクライアントへ送るfull syncです。
type syncPayload struct {
	Player     state.PlayerData `json:"player"`
	FoodSupply FoodSupplyStatus `json:"foodSupply"`
}

// Connect はプレイヤーデータのロード（なければ新規作成）とfull syncの構築を行います。
func (g *Gateway) Connect(ctx context.Context, actorID domain.ActorID) (any, error) {
	if _, err := g.state.GetPlayer(ctx, actorID); errors.Is(err, state.ErrPlayerNotFound) {
		snapshot, err := g.store.Load(ctx, actorID)
		if err != nil {
			return nil, err
		}
		player := g.data.DefaultPlayer(actorID, g.clock.Now())
		if snapshot != nil {
			player = *snapshot
		}
		if err := g.state.Restore(ctx, player); err != nil {
			return nil, err
		}
	}

	player, err := g.state.GetPlayer(ctx, actorID)
	if err != nil {
		return nil, err
	}
	status, err := g.food.ComputeStatus(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return syncPayload{Player: player, FoodSupply: status}, nil
}

// Disconnect はプレイヤーデータを永続化し、アクター所有のリソースを解放します。
func (g *Gateway) Disconnect(ctx context.Context, actorID domain.ActorID) {
	saveCtx, cancel := context.WithTimeout(ctx, disconnectSaveTimeout)
	defer cancel()

	player, err := g.state.GetPlayer(saveCtx, actorID)
	if err == nil {
		if err := g.store.Save(saveCtx, player); err != nil {
			slog.ErrorContext(saveCtx, "failed to persist player on disconnect", "actorID", actorID, "err", err)
		}
	}
	g.limiter.Purge(actorID)
	g.battle.Release(saveCtx, actorID)
	g.travel.Release(saveCtx, actorID)
}

// FlushAll は全プレイヤーの状態を永続化します。シャットダウン時に呼び出すこと。
func (g *Gateway) FlushAll(ctx context.Context) error {
	players, err := g.state.All(ctx)
	if err != nil {
		return err
	}
	var lastErr error
	for _, player := range players {
		if err := g.store.Save(ctx, player); err != nil {
			slog.ErrorContext(ctx, "failed to flush player", "actorID", player.ActorID, "err", err)
			lastErr = err
		}
	}
	return lastErr
}

var (
	_ domain.Dispatcher = (*Gateway)(nil)
	_ domain.Lifecycle  = (*Gateway)(nil)
)
