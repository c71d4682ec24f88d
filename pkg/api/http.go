// Package api wires the HTTP surface: webhook intake, conversation reads,
// message compose and the realtime websocket feed.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatsink/pkg/api/handlers"
	"chatsink/pkg/fanout"
	"chatsink/pkg/ingest"
)

// Handler returns the routed API. maxBody caps a single webhook payload in
// bytes; zero selects the default.
func Handler(proc *ingest.Processor, hub *fanout.Hub, maxBody int64) http.Handler {
	r := mux.NewRouter()
	handlers.RegisterWebhook(r, proc, maxBody)
	handlers.RegisterConversations(r, proc)
	handlers.RegisterWS(r, hub)
	return r
}
