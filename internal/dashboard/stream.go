package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var logStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The operator dashboard is same-origin in production deployments and
	// reverse-proxied elsewhere; the bearer-token command endpoints are the
	// actual trust boundary, so the stream accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const logStreamSubscriberBuffer = 64

// handleLogsStream upgrades to a websocket and tails the log ring buffer
// (spec.md §4.14 "GET /api/logs/stream"), replaying the most recent entries
// first so a newly connected dashboard isn't staring at a blank pane.
func (s *Server) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := logStreamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Log.WithError(err).Warn("dashboard: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.deps.Logs.Subscribe(logStreamSubscriberBuffer)
	defer unsubscribe()

	for _, e := range s.deps.Logs.Recent(100) {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
