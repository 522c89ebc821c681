package adapterwebsocket

import (
	"context"

	"github.com/coder/websocket"

	"stronghold/server/domain"
)

type wsTransport struct {
	conn *websocket.Conn
}

// NewTransportFrom はアップグレード済みのwebsocket接続をdomain.Transportとして包みます。
func NewTransportFrom(conn *websocket.Conn) domain.Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write はコマンド応答・サーバープッシュ共通のJSONテキストフレームを送信します。
func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code int32, reason string) error {
	return t.conn.Close(websocket.StatusCode(code), reason)
}
