package application

import (
	"context"
	"log/slog"

	"stronghold/server/domain"
)

// FoodSupplyStatus は食料の生産・消費の現況です。
// PausedはUsageがProductionを上回っている場合にtrueになります。
type FoodSupplyStatus struct {
	Production float64 `json:"production"`
	Usage      float64 `json:"usage"`
	Paused     bool    `json:"paused"`
}

// UnitView はデプロイ済みユニットのクライアント向けビューです。
// 内部のタイムスタンプは公開しない。
type UnitView struct {
	Type     string         `json:"type"`
	Position domain.Vector3 `json:"position"`
}

// BattleTickEvent は進行中戦闘の1tickスナップショットです。
type BattleTickEvent struct {
	BattleID      string     `json:"battleId"`
	Phase         string     `json:"phase"`
	TimeRemaining float64    `json:"timeRemaining"` // 秒
	Destruction   float64    `json:"destruction"`
	StarsEarned   int        `json:"starsEarned"`
	Troops        []UnitView `json:"troops"`
	Spells        []UnitView `json:"spells"`
}

// BattleResult は戦闘終了時の最終結果です。
type BattleResult struct {
	BattleID    string         `json:"battleId"`
	AttackerID  domain.ActorID `json:"attackerId"`
	DefenderID  domain.ActorID `json:"defenderId"`
	Destruction float64        `json:"destruction"`
	StarsEarned int            `json:"starsEarned"`
	Loot        map[string]int `json:"loot"`
}

// TravelUpdateEvent は移動カウントダウンの1tick通知です。
type TravelUpdateEvent struct {
	Complete  bool           `json:"complete"`
	Remaining float64        `json:"remaining,omitempty"` // 秒
	TargetID  domain.ActorID `json:"targetId,omitempty"`
}

// UpgradeCompletedEvent はアップグレード完了の遅延通知です。
type UpgradeCompletedEvent struct {
	BuildingID string `json:"buildingId"`
	Type       string `json:"type"`
	Level      int    `json:"level"`
}

// TrainingCompletedEvent は訓練完了の遅延通知です。
type TrainingCompletedEvent struct {
	TroopType string `json:"troopType"`
	Quantity  int    `json:"quantity"`
}

// Notifier はサービス層からアクターへの型付きプッシュ通知の送信口です。
// 配送はPubSub経由で行われ、未接続のアクター宛はそのまま破棄されます。
type Notifier struct {
	pubsub domain.PubSub
}

func NewNotifier(pubsub domain.PubSub) *Notifier {
	return &Notifier{pubsub: pubsub}
}

func (n *Notifier) Push(ctx context.Context, actorID domain.ActorID, msgType string, payload any) {
	data, err := domain.EncodeServerMessage(msgType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode push", "actorID", actorID, "type", msgType, "err", err)
		return
	}
	n.pubsub.Publish(ctx, domain.ActorTopic(actorID), domain.Message{ActorID: actorID, Data: data})
}
