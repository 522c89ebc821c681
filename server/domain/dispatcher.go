package domain

import "context"

//go:generate go tool mockgen -destination=./mocks/dispatcher_mock.go -package=mocks . Dispatcher,Lifecycle

// Dispatcher はセッション層からゲートウェイへのコマンド配送を担当します。
type Dispatcher interface {
	// Dispatch はコマンドを処理し応答を返します。
	// 2番目の戻り値がfalseの場合、応答は送信されません（サイレントドロップ）。
	Dispatch(ctx context.Context, actorID ActorID, cmd *Command) (*Response, bool)
}

// Lifecycle はアクター接続の開始・終了時の状態管理を担当します。
type Lifecycle interface {
	// Connect はプレイヤーデータをロードし、full syncペイロードを返します。
	Connect(ctx context.Context, actorID ActorID) (any, error)
	// Disconnect はプレイヤーデータを永続化し、アクター所有のリソースを解放します。
	Disconnect(ctx context.Context, actorID ActorID)
}
