package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// BattlePhase は戦闘の状態機械のフェーズです。
// Preparing → InProgress → Ended の一方向にのみ遷移します。
type BattlePhase string

const (
	PhasePreparing  BattlePhase = "Preparing"
	PhaseInProgress BattlePhase = "InProgress"
	PhaseEnded      BattlePhase = "Ended"
)

// DeployedUnit は戦闘中にデプロイされた1ユニットです。
type DeployedUnit struct {
	Type       string
	Position   domain.Vector3
	DeployedAt time.Time
}

// Battle は1戦闘インスタンスの権威的状態です。
// デプロイ処理とtick計算はmuで直列化され、同時に変更されることはありません。
type Battle struct {
	ID         string
	AttackerID domain.ActorID
	DefenderID domain.ActorID

	mu          sync.Mutex
	phase       BattlePhase
	startedAt   time.Time
	endsAt      time.Time
	destruction float64
	stars       int
	troops      []DeployedUnit
	spells      []DeployedUnit

	// 防衛側レイアウトから開始時点で導出した合計耐久値（読み取り専用）
	totalHitpoints float64
	lootAvailable  state.Resources

	cancel context.CancelFunc
}

// BattleEngine は進行中の全戦闘を所有し、tickの生成と状態遷移を駆動します。
// 攻撃側アクター1人につき同時に1戦闘のみ許可されます。
type BattleEngine struct {
	mu      sync.Mutex
	battles map[domain.ActorID]*Battle // 攻撃側アクターIDがキー
	byID    map[string]*Battle

	state    state.PlayerState
	data     *GameData
	notifier *Notifier
	clock    Clock

	tickInterval time.Duration
	duration     time.Duration
}

func NewBattleEngine(st state.PlayerState, data *GameData, notifier *Notifier, clock Clock) *BattleEngine {
	if clock == nil {
		clock = SystemClock()
	}
	return &BattleEngine{
		battles:      make(map[domain.ActorID]*Battle),
		byID:         make(map[string]*Battle),
		state:        st,
		data:         data,
		notifier:     notifier,
		clock:        clock,
		tickInterval: time.Second,
		duration:     BattleDuration,
	}
}

// WithTickInterval はテスト用にtick間隔と戦闘時間を差し替える。
func (e *BattleEngine) WithTickInterval(tick, duration time.Duration) *BattleEngine {
	e.tickInterval = tick
	e.duration = duration
	return e
}

// Start は新しい戦闘を開始し、battleIDを返します。
func (e *BattleEngine) Start(ctx context.Context, attackerID, defenderID domain.ActorID) (string, error) {
	if attackerID == defenderID {
		return "", ErrInvalidTarget
	}
	defender, err := e.state.GetPlayer(ctx, defenderID)
	if err != nil {
		return "", ErrInvalidTarget
	}
	if defender.Shielded {
		return "", ErrInvalidTarget
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.battles[attackerID]; ok {
		return "", ErrAlreadyInBattle
	}

	now := e.clock.Now()
	var totalHP float64
	for _, b := range defender.Buildings {
		spec, ok := e.data.Building(b.Type)
		if !ok {
			continue
		}
		totalHP += e.data.Hitpoints(spec, b.Level)
	}

	battleCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	battle := &Battle{
		ID:             uuid.NewString(),
		AttackerID:     attackerID,
		DefenderID:     defenderID,
		phase:          PhaseInProgress,
		startedAt:      now,
		endsAt:         now.Add(e.duration),
		totalHitpoints: totalHP,
		lootAvailable: state.Resources{
			Gold:   int(float64(defender.Resources.Gold) * LootRatio),
			Elixir: int(float64(defender.Resources.Elixir) * LootRatio),
		},
		cancel: cancel,
	}
	e.battles[attackerID] = battle
	e.byID[battle.ID] = battle

	go e.runBattle(battleCtx, battle)
	return battle.ID, nil
}

// DeployTroop はユニットを戦場へ投入します。兵站の消費はこの時点で確定し、
// 戦闘が中断されても返還されません。
func (e *BattleEngine) DeployTroop(ctx context.Context, actorID domain.ActorID, battleID, troopType string, pos domain.Vector3) error {
	if _, ok := e.data.Troop(troopType); !ok {
		return ErrInvalidTarget
	}
	battle, err := e.lookup(battleID)
	if err != nil {
		return err
	}

	battle.mu.Lock()
	defer battle.mu.Unlock()
	if err := battle.deployableLocked(actorID, e.clock.Now()); err != nil {
		return err
	}
	if err := e.state.RemoveTroops(ctx, actorID, troopType, 1); err != nil {
		return err
	}
	battle.troops = append(battle.troops, DeployedUnit{
		Type:       troopType,
		Position:   pos,
		DeployedAt: e.clock.Now(),
	})
	return nil
}

// DeploySpell は呪文を戦場へ投入します。資源コストはこの時点で確定します。
func (e *BattleEngine) DeploySpell(ctx context.Context, actorID domain.ActorID, battleID, spellType string, pos domain.Vector3) error {
	spell, ok := e.data.Spell(spellType)
	if !ok {
		return ErrInvalidTarget
	}
	battle, err := e.lookup(battleID)
	if err != nil {
		return err
	}

	battle.mu.Lock()
	defer battle.mu.Unlock()
	if err := battle.deployableLocked(actorID, e.clock.Now()); err != nil {
		return err
	}
	if err := e.state.Debit(ctx, actorID, spell.Cost); err != nil {
		return err
	}
	battle.spells = append(battle.spells, DeployedUnit{
		Type:       spellType,
		Position:   pos,
		DeployedAt: e.clock.Now(),
	})
	return nil
}

// Forfeit は攻撃側による戦闘放棄です。次のtickを待たずに即座に終了します。
func (e *BattleEngine) Forfeit(ctx context.Context, actorID domain.ActorID) bool {
	e.mu.Lock()
	battle, ok := e.battles[actorID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.endBattle(ctx, battle)
	return true
}

// Release は切断時の後始末です。アクター所有の戦闘を終了させます。
func (e *BattleEngine) Release(ctx context.Context, actorID domain.ActorID) {
	e.Forfeit(ctx, actorID)
}

// ActiveBattle は攻撃側アクターの進行中戦闘IDを返します。
func (e *BattleEngine) ActiveBattle(actorID domain.ActorID) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	battle, ok := e.battles[actorID]
	if !ok {
		return "", false
	}
	return battle.ID, true
}

func (e *BattleEngine) lookup(battleID string) (*Battle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	battle, ok := e.byID[battleID]
	if !ok {
		return nil, ErrInvalidTarget
	}
	return battle, nil
}

// deployableLocked はデプロイ受付条件を検査します。battle.muを保持して呼ぶこと。
func (b *Battle) deployableLocked(actorID domain.ActorID, now time.Time) error {
	if b.phase != PhaseInProgress {
		return ErrInvalidState
	}
	if !now.Before(b.endsAt) {
		return ErrInvalidState
	}
	if actorID != b.AttackerID {
		return ErrInvalidState
	}
	return nil
}

// runBattle は1戦闘のtickループです。内部フォールトが発生した場合も
// 戦闘をEndedに遷移させてから終了し、宙吊りの状態を残しません。
func (e *BattleEngine) runBattle(ctx context.Context, battle *Battle) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "battle tick loop panicked", "battleID", battle.ID, "panic", r)
			e.endBattle(ctx, battle)
		}
	}()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := e.tickBattle(ctx, battle); done {
				return
			}
		}
	}
}

// tickBattle は破壊率・星数を再計算してスナップショットを配信し、
// 終了条件を満たしていれば戦闘を終了します。
func (e *BattleEngine) tickBattle(ctx context.Context, battle *Battle) bool {
	now := e.clock.Now()

	battle.mu.Lock()
	if battle.phase != PhaseInProgress {
		battle.mu.Unlock()
		return true
	}
	battle.recomputeLocked(e.data, now)
	snapshot := battle.snapshotLocked(now)
	expired := !now.Before(battle.endsAt)
	destroyed := battle.destruction >= DestructionMax
	battle.mu.Unlock()

	e.notifier.Push(ctx, battle.AttackerID, domain.MsgTypeBattleTick, snapshot)

	if expired || destroyed {
		e.endBattle(ctx, battle)
		return true
	}
	return false
}

// recomputeLocked は経過時間とデプロイ済みユニットから破壊率と星数を導出します。
func (b *Battle) recomputeLocked(data *GameData, now time.Time) {
	effective := now
	if effective.After(b.endsAt) {
		effective = b.endsAt
	}

	var damage float64
	for _, unit := range b.troops {
		spec, ok := data.Troop(unit.Type)
		if !ok {
			continue
		}
		active := effective.Sub(unit.DeployedAt).Seconds()
		if active < 0 {
			active = 0
		}
		damage += spec.DPS * active
	}
	for _, unit := range b.spells {
		spec, ok := data.Spell(unit.Type)
		if !ok {
			continue
		}
		damage += spec.Damage
	}

	if b.totalHitpoints <= 0 {
		b.destruction = DestructionMax
	} else {
		b.destruction = damage / b.totalHitpoints * 100
		if b.destruction > DestructionMax {
			b.destruction = DestructionMax
		}
	}

	switch {
	case b.destruction >= DestructionMax:
		b.stars = 3
	case b.destruction >= StarThresholdTwo:
		b.stars = 2
	case b.destruction >= StarThresholdOne:
		b.stars = 1
	default:
		b.stars = 0
	}
}

// snapshotLocked はクライアントへ公開する縮約ビューを構築します。
// 内部のタイムスタンプ等は含めません。
func (b *Battle) snapshotLocked(now time.Time) BattleTickEvent {
	remaining := b.endsAt.Sub(now).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	troops := make([]UnitView, 0, len(b.troops))
	for _, u := range b.troops {
		troops = append(troops, UnitView{Type: u.Type, Position: u.Position})
	}
	spells := make([]UnitView, 0, len(b.spells))
	for _, u := range b.spells {
		spells = append(spells, UnitView{Type: u.Type, Position: u.Position})
	}
	return BattleTickEvent{
		BattleID:      b.ID,
		Phase:         string(b.phase),
		TimeRemaining: remaining,
		Destruction:   b.destruction,
		StarsEarned:   b.stars,
		Troops:        troops,
		Spells:        spells,
	}
}

// endBattle は戦闘をEndedに遷移させ、最終結果を配信して記録を破棄します。
// 複数経路から呼ばれても最初の1回のみ有効です。
func (e *BattleEngine) endBattle(ctx context.Context, battle *Battle) {
	now := e.clock.Now()

	battle.mu.Lock()
	if battle.phase == PhaseEnded {
		battle.mu.Unlock()
		return
	}
	battle.recomputeLocked(e.data, now)
	battle.phase = PhaseEnded
	loot := state.Resources{
		Gold:   int(float64(battle.lootAvailable.Gold) * battle.destruction / 100),
		Elixir: int(float64(battle.lootAvailable.Elixir) * battle.destruction / 100),
	}
	result := BattleResult{
		BattleID:    battle.ID,
		AttackerID:  battle.AttackerID,
		DefenderID:  battle.DefenderID,
		Destruction: battle.destruction,
		StarsEarned: battle.stars,
		Loot:        map[string]int{"gold": loot.Gold, "elixir": loot.Elixir},
	}
	battle.mu.Unlock()

	if err := e.state.AddResources(ctx, battle.AttackerID, loot); err != nil {
		slog.WarnContext(ctx, "failed to award loot", "battleID", battle.ID, "err", err)
	}
	e.notifier.Push(ctx, battle.AttackerID, domain.MsgTypeBattleEnded, result)

	e.mu.Lock()
	delete(e.battles, battle.AttackerID)
	delete(e.byID, battle.ID)
	e.mu.Unlock()

	battle.cancel()
}
