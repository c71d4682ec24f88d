package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chatsink/pkg/fanout"
	"chatsink/pkg/logger"
)

// RegisterWS registers the realtime event feed. Clients receive every
// message_created / message_status_updated event; an optional ?wa_id= query
// narrows the feed to one conversation.
func RegisterWS(r *mux.Router, hub *fanout.Hub) {
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		c, err := websocket.Accept(w, req, &websocket.AcceptOptions{
			// the gateway middleware already enforced origin policy
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Warn("ws_accept_failed", "error", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "closing")

		filter := req.URL.Query().Get("wa_id")
		events, cancel := hub.Subscribe()
		defer cancel()

		// reads are discarded; the returned context ends when the client goes away
		ctx := c.CloseRead(req.Context())
		logger.Info("ws_subscriber_connected", "remote", req.RemoteAddr, "wa_id", filter)

		for {
			select {
			case <-ctx.Done():
				c.Close(websocket.StatusNormalClosure, "")
				logger.Info("ws_subscriber_gone", "remote", req.RemoteAddr)
				return
			case ev, ok := <-events:
				if !ok {
					c.Close(websocket.StatusGoingAway, "shutting down")
					return
				}
				if filter != "" && ev.WaID != filter {
					continue
				}
				if err := wsjson.Write(ctx, c, ev); err != nil {
					logger.Warn("ws_write_failed", "remote", req.RemoteAddr, "error", err)
					return
				}
			}
		}
	}).Methods(http.MethodGet)
}
