package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// GET /v1/{tenant}/audits/progress/ws
// Pushes the latest progress after every change. Slow readers skip intermediate states.
func (r *Router) handleProgressStream(w http.ResponseWriter, req *http.Request) {
	tenant, t := r.tenant(req)
	log := r.log.WithField("tenant", tenant)

	conn, err := progressUpgrader.Upgrade(w, req, nil)
	if err != nil {
		log.WithError(err).Warn("progress stream: upgrade failed")
		return
	}
	defer conn.Close()

	updates, unsubscribe := t.Audit.Tracker.Subscribe()
	defer unsubscribe()

	// The read loop handles control frames and notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case p, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(progressResponse{Running: t.Audit.Running(), Progress: p, ETA: t.Audit.ETA()}); err != nil {
				log.WithError(err).Debug("progress stream: write failed")
				return
			}
		}
	}
}
