package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/obs"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range a.Cfg.CORSOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// streamHandler upgrades to a websocket and pushes every generated order as a
// feed message until the client goes away or the feed stops.
func (a *App) streamHandler(w http.ResponseWriter, r *http.Request) {
	if a.Feed == nil || a.Feed.IsShuttingDown() {
		WriteJSONError(w, http.StatusServiceUnavailable, "feed_unavailable", "")
		return
	}
	up := upgrader
	up.CheckOrigin = a.checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		obs.Logger.Warn("stream_upgrade_failed", "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	sub := a.Feed.Subscribe()
	defer sub.Close()
	reqID := RequestIDFromContext(r.Context())
	obs.Logger.Info("stream_subscribed", "request_id", reqID)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			obs.Logger.Info("stream_closed", "request_id", reqID)
			return
		case <-r.Context().Done():
			return
		case m, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			b, err := json.Marshal(m)
			if err != nil {
				obs.Logger.Error("stream_encode_failed", "error", err.Error())
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
