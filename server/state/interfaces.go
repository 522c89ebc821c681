package state

import (
	"context"
	"errors"
	"time"

	"stronghold/server/domain"
)

var (
	ErrPlayerNotFound        = errors.New("state: player not found")
	ErrBuildingNotFound      = errors.New("state: building not found")
	ErrInsufficientResources = errors.New("state: insufficient resources")
	ErrInsufficientTroops    = errors.New("state: insufficient troops")
	ErrUpgradeInProgress     = errors.New("state: upgrade already in progress")
	ErrPositionOccupied      = errors.New("state: position occupied")
	ErrQueueFull             = errors.New("state: training queue full")
	ErrJobNotFound           = errors.New("state: training job not found")
)

// Resources はプレイヤーの保有資源を表します。
type Resources struct {
	Gold   int `json:"gold"`
	Elixir int `json:"elixir"`
}

// Building はプレイヤー所有の建物1棟を表します。
// UpgradeDoneAtがゼロ値でない場合、アップグレードが進行中です。
type Building struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Level         int            `json:"level"`
	Position      domain.Vector3 `json:"position"`
	UpgradeDoneAt time.Time      `json:"upgradeDoneAt,omitzero"`
	LastCollected time.Time      `json:"lastCollected,omitzero"`
}

// TrainingJob は訓練キューの1エントリを表します。
type TrainingJob struct {
	ID        string    `json:"id"`
	TroopType string    `json:"troopType"`
	Quantity  int       `json:"quantity"`
	DoneAt    time.Time `json:"doneAt"`
}

// PlayerData は1プレイヤーの権威的状態です。
type PlayerData struct {
	ActorID       domain.ActorID `json:"actorId"`
	Resources     Resources      `json:"resources"`
	Buildings     []Building     `json:"buildings"`
	Troops        map[string]int `json:"troops"`
	TrainingQueue []TrainingJob  `json:"trainingQueue"`
	AllianceID    string         `json:"allianceId,omitempty"`
	Shielded      bool           `json:"shielded"`
}

// PlayerState はプレイヤー状態への唯一の変更経路です。
// 各メソッドは原子的に適用され、戻り値は呼び出し時点のコピーです。
type PlayerState interface {
	GetPlayer(ctx context.Context, actorID domain.ActorID) (PlayerData, error)
	Restore(ctx context.Context, data PlayerData) error
	All(ctx context.Context) ([]PlayerData, error)

	PlaceBuilding(ctx context.Context, actorID domain.ActorID, b Building, cost Resources) (Building, error)
	StartUpgrade(ctx context.Context, actorID domain.ActorID, buildingID string, cost Resources, doneAt time.Time) (Building, error)
	FinishUpgrade(ctx context.Context, actorID domain.ActorID, buildingID string) (Building, error)
	Collect(ctx context.Context, actorID domain.ActorID, buildingID string, ratePerSecond float64, storageCap int) (int, error)

	StartTraining(ctx context.Context, actorID domain.ActorID, job TrainingJob, cost Resources, queueCap int) error
	CancelTraining(ctx context.Context, actorID domain.ActorID, queueIndex int, refund Resources) (TrainingJob, error)
	FinishTraining(ctx context.Context, actorID domain.ActorID, jobID string) (TrainingJob, error)

	AddTroops(ctx context.Context, actorID domain.ActorID, troopType string, count int) error
	RemoveTroops(ctx context.Context, actorID domain.ActorID, troopType string, count int) error
	AddResources(ctx context.Context, actorID domain.ActorID, r Resources) error
	Debit(ctx context.Context, actorID domain.ActorID, cost Resources) error
	SetAlliance(ctx context.Context, actorID domain.ActorID, allianceID string) error
}

// PlayerStore はプレイヤー状態のスナップショット永続化を担当します。
// 接続時にLoad、切断時・シャットダウン時にSaveされます。
type PlayerStore interface {
	// Load は保存済みスナップショットを返します。存在しない場合は(nil, nil)を返します。
	Load(ctx context.Context, actorID domain.ActorID) (*PlayerData, error)
	Save(ctx context.Context, data PlayerData) error
	Delete(ctx context.Context, actorID domain.ActorID) error
	Close() error
}
