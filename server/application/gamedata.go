package application

import (
	"time"

	"github.com/google/uuid"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// BuildingSpec は建物種別ごとの静的ステータスです。
type BuildingSpec struct {
	Type           string
	BaseCost       state.Resources
	UpgradeCost    state.Resources // レベルごとの係数
	BaseHitpoints  float64
	HitpointsPerLv float64
	FoodProduction float64 // 1レベルあたりの食料生産量
	GoldPerSecond  float64 // 資源収集系のみ
	StorageCap     int
	UpgradeTime    time.Duration
}

// TroopSpec はユニット種別ごとの静的ステータスです。
type TroopSpec struct {
	Type       string
	Cost       state.Resources // 1体あたり
	FoodUpkeep float64         // 1体あたりの食料消費
	DPS        float64
	TrainTime  time.Duration // 1体あたり
}

// SpellSpec は呪文種別ごとの静的ステータスです。
type SpellSpec struct {
	Type   string
	Cost   state.Resources
	Damage float64 // 着弾時の即時ダメージ
}

// GameData は不変のゲームデザインデータを供給するコラボレーターです。
type GameData struct {
	buildings map[string]BuildingSpec
	troops    map[string]TroopSpec
	spells    map[string]SpellSpec
}

// 戦闘関連の定数
const (
	BattleDuration    = 3 * time.Minute
	StarThresholdOne  = 50.0
	StarThresholdTwo  = 75.0
	DestructionMax    = 100.0
	LootRatio         = 0.2 // 防衛側資源のうち略奪可能な割合
	TrainingQueueCap  = 50
	DefaultTravelTime = 30 * time.Second
)

// NewGameData は組み込みのステータステーブルを返します。
// 数値はゲームバランス調整の対象であり、ここでの値は初期値にすぎない。
func NewGameData() *GameData {
	buildings := []BuildingSpec{
		{Type: "TownHall", BaseCost: state.Resources{Gold: 0}, UpgradeCost: state.Resources{Gold: 1000, Elixir: 1000}, BaseHitpoints: 450, HitpointsPerLv: 150, UpgradeTime: 60 * time.Second},
		{Type: "Farm", BaseCost: state.Resources{Gold: 100}, UpgradeCost: state.Resources{Gold: 150}, BaseHitpoints: 100, HitpointsPerLv: 20, FoodProduction: 5, UpgradeTime: 30 * time.Second},
		{Type: "GoldMine", BaseCost: state.Resources{Elixir: 150}, UpgradeCost: state.Resources{Elixir: 200}, BaseHitpoints: 120, HitpointsPerLv: 25, GoldPerSecond: 1.5, StorageCap: 500, UpgradeTime: 30 * time.Second},
		{Type: "Barracks", BaseCost: state.Resources{Gold: 200, Elixir: 100}, UpgradeCost: state.Resources{Gold: 250}, BaseHitpoints: 180, HitpointsPerLv: 30, UpgradeTime: 45 * time.Second},
		{Type: "Cannon", BaseCost: state.Resources{Gold: 250}, UpgradeCost: state.Resources{Gold: 300}, BaseHitpoints: 300, HitpointsPerLv: 60, UpgradeTime: 45 * time.Second},
		{Type: "Wall", BaseCost: state.Resources{Gold: 50}, UpgradeCost: state.Resources{Gold: 75}, BaseHitpoints: 500, HitpointsPerLv: 100, UpgradeTime: 15 * time.Second},
	}
	troops := []TroopSpec{
		{Type: "Barbarian", Cost: state.Resources{Elixir: 25}, FoodUpkeep: 1, DPS: 8, TrainTime: 5 * time.Second},
		{Type: "Archer", Cost: state.Resources{Elixir: 50}, FoodUpkeep: 1, DPS: 7, TrainTime: 6 * time.Second},
		{Type: "Giant", Cost: state.Resources{Elixir: 250}, FoodUpkeep: 5, DPS: 11, TrainTime: 30 * time.Second},
	}
	spells := []SpellSpec{
		{Type: "Lightning", Cost: state.Resources{Elixir: 150}, Damage: 300},
		{Type: "Quake", Cost: state.Resources{Elixir: 200}, Damage: 450},
	}

	data := &GameData{
		buildings: make(map[string]BuildingSpec, len(buildings)),
		troops:    make(map[string]TroopSpec, len(troops)),
		spells:    make(map[string]SpellSpec, len(spells)),
	}
	for _, b := range buildings {
		data.buildings[b.Type] = b
	}
	for _, t := range troops {
		data.troops[t.Type] = t
	}
	for _, s := range spells {
		data.spells[s.Type] = s
	}
	return data
}

func (d *GameData) Building(buildingType string) (BuildingSpec, bool) {
	spec, ok := d.buildings[buildingType]
	return spec, ok
}

func (d *GameData) Troop(troopType string) (TroopSpec, bool) {
	spec, ok := d.troops[troopType]
	return spec, ok
}

func (d *GameData) Spell(spellType string) (SpellSpec, bool) {
	spec, ok := d.spells[spellType]
	return spec, ok
}

// Hitpoints は指定レベルの建物の耐久値を返します。
func (d *GameData) Hitpoints(spec BuildingSpec, level int) float64 {
	if level < 1 {
		level = 1
	}
	return spec.BaseHitpoints + spec.HitpointsPerLv*float64(level-1)
}

// UpgradeCostFor は指定レベルからのアップグレード費用を返します。
func (d *GameData) UpgradeCostFor(spec BuildingSpec, level int) state.Resources {
	return state.Resources{
		Gold:   spec.UpgradeCost.Gold * level,
		Elixir: spec.UpgradeCost.Elixir * level,
	}
}

// DefaultPlayer は新規プレイヤーの初期状態を構築します。
func (d *GameData) DefaultPlayer(actorID domain.ActorID, now time.Time) state.PlayerData {
	return state.PlayerData{
		ActorID:   actorID,
		Resources: state.Resources{Gold: 1000, Elixir: 1000},
		Buildings: []state.Building{
			{ID: uuid.NewString(), Type: "TownHall", Level: 1, Position: domain.Vector3{X: 0, Y: 0, Z: 0}, LastCollected: now},
			{ID: uuid.NewString(), Type: "Farm", Level: 2, Position: domain.Vector3{X: 4, Y: 0, Z: 0}, LastCollected: now},
			{ID: uuid.NewString(), Type: "GoldMine", Level: 1, Position: domain.Vector3{X: 0, Y: 0, Z: 4}, LastCollected: now},
		},
		Troops: make(map[string]int),
	}
}
