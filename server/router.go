package server

import (
	"net/http"

	"stronghold/server/domain"
	"stronghold/server/handler"
)

func Route(pubsub domain.PubSub, dispatcher domain.Dispatcher, lifecycle domain.Lifecycle) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", handler.NewAcceptHandler(pubsub, dispatcher, lifecycle))
	mux.Handle("/healthz", handler.NewHealthHandler())
	return mux
}
