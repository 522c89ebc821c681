package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	adapterwebsocket "stronghold/server/adapter/websocket"
	"stronghold/server/domain"
)

// AcceptHandler はwebsocket接続を受け付け、アクターごとのセッションエンドポイントを起動します。
type AcceptHandler struct {
	pubsub     domain.PubSub
	dispatcher domain.Dispatcher
	lifecycle  domain.Lifecycle
}

func NewAcceptHandler(pubsub domain.PubSub, dispatcher domain.Dispatcher, lifecycle domain.Lifecycle) *AcceptHandler {
	return &AcceptHandler{pubsub: pubsub, dispatcher: dispatcher, lifecycle: lifecycle}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, err := strconv.ParseInt(r.URL.Query().Get("actor"), 10, 64)
	if err != nil || actorID <= 0 {
		http.Error(w, "invalid actor id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}

	session := domain.NewSession(domain.ActorID(actorID))
	transport := adapterwebsocket.NewTransportFrom(conn)
	connection := domain.NewConnection(session.ActorID(), uuid.NewString(), transport)
	endpoint, err := domain.NewSessionEndpoint(session, connection, h.pubsub, h.dispatcher, h.lifecycle)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session endpoint", "err", err)
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "actorID", actorID, "sessionID", session.ID())
	if err := endpoint.Run(); err != nil {
		slog.ErrorContext(ctx, "session endpoint terminated", "actorID", actorID, "err", err)
		return
	}
}
