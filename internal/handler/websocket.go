package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"flock-server/internal/hub"
	"flock-server/internal/metrics"
	"flock-server/internal/presence"
	"flock-server/internal/store"
)

type WebSocketHandler struct {
	Registry *hub.Registry
	Channels *hub.Channels
	Store    *store.Store
}

type clientMessage struct {
	Type    string  `json:"type"`
	UserID  string  `json:"userId,omitempty"`
	GroupID string  `json:"groupId,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Lng     float64 `json:"lng,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes to one websocket. Broadcast goroutines and
// the connection's own reader both write through it.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

// Serve upgrades the request and runs the connection's protocol loop.
// Whatever state the connection reached, returning from here tears it
// out of the registry and every channel.
func (h *WebSocketHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &hub.Conn{SID: uuid.NewString(), Writer: &wsWriter{conn: ws}}
	sess := presence.NewSession(conn, h.Registry, h.Channels, h.Store)
	metrics.ConnectionsOpen.Inc()
	defer func() {
		sess.Close()
		_ = ws.Close()
		metrics.ConnectionsOpen.Dec()
	}()

	ws.SetReadLimit(64 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			writeError(conn, "bad_request", "Malformed message")
			continue
		}

		switch msg.Type {
		case "ping":
			out, _ := json.Marshal(gin.H{"type": "pong"})
			_ = conn.Writer.Write(out)

		case "identify":
			if msg.UserID == "" {
				writeError(conn, "bad_request", "userId required")
				continue
			}
			sess.Identify(msg.UserID)

		case "subscribe":
			if msg.GroupID == "" {
				writeError(conn, "bad_request", "groupId required")
				continue
			}
			if err := sess.Subscribe(ctx, msg.GroupID); err != nil {
				writeError(conn, subscribeCode(err), err.Error())
				continue
			}
			out, _ := json.Marshal(gin.H{"type": "subscribed", "groupId": msg.GroupID})
			_ = conn.Writer.Write(out)

		case "location":
			if msg.GroupID == "" {
				writeError(conn, "bad_request", "groupId required")
				continue
			}
			delivered, err := sess.Publish(ctx, msg.GroupID, msg.Lat, msg.Lng)
			if err != nil {
				writeError(conn, publishCode(err), err.Error())
				continue
			}
			metrics.EventsPublished.Inc()
			metrics.EventsDelivered.Add(float64(delivered))

		default:
			writeError(conn, "bad_request", "Unknown message type")
		}
	}
}

func subscribeCode(err error) string {
	switch {
	case errors.Is(err, presence.ErrNotIdentified):
		return "invalid_state"
	case errors.Is(err, presence.ErrForbidden):
		return "forbidden"
	default:
		return "store_unavailable"
	}
}

func publishCode(err error) string {
	if errors.Is(err, presence.ErrNotIdentified) || errors.Is(err, presence.ErrNotSubscribed) {
		return "invalid_state"
	}
	return "store_unavailable"
}

func writeError(conn *hub.Conn, code, message string) {
	out, err := json.Marshal(errorMessage{Type: "error", Code: code, Message: message})
	if err != nil {
		return
	}
	_ = conn.Writer.Write(out)
}
