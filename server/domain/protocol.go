package domain

import (
	"encoding/json"
	"errors"
)

// Command はクライアントから受信する1コマンドです。
//
//	action  コマンド名 ("PlaceBuilding" など)
//	seq     クライアント採番のシーケンス番号、応答の対応付けに使用
//	args    アクションごとの引数ペイロード
type Command struct {
	Action string          `json:"action"`
	Seq    uint64          `json:"seq"`
	Args   json.RawMessage `json:"args"`
}

// Response はコマンドに対する同期応答です。
// Successがfalseの場合、Payloadは省略されErrorが必ず設定されます。
type Response struct {
	Seq     uint64 `json:"seq"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// ServerMessage はサーバーからクライアントへの全送信メッセージの外枠です。
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// サーバー送信メッセージの種別
const (
	MsgTypeResponse         = "response"
	MsgTypeSync             = "sync"
	MsgTypeFoodSupplyUpdate = "foodSupplyUpdate"
	MsgTypeBattleTick       = "battleTick"
	MsgTypeBattleEnded      = "battleEnded"
	MsgTypeTravelUpdate     = "travelUpdate"
	MsgTypeUpgradeDone      = "upgradeCompleted"
	MsgTypeTrainingDone     = "trainingCompleted"
)

var ErrEmptyAction = errors.New("command action is empty")

// ParseCommand はバイト列からCommandをパースします。
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	if cmd.Action == "" {
		return nil, ErrEmptyAction
	}
	return &cmd, nil
}

// EncodeResponse はコマンド応答をServerMessageとしてエンコードします。
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: MsgTypeResponse, Payload: resp})
}

// EncodeServerMessage は任意の種別のメッセージをエンコードします。
func EncodeServerMessage(msgType string, payload any) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: msgType, Payload: payload})
}
