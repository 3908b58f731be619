package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/unkn0wn-root/quizgate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Conn is one client connection. Its room set is guarded by the hub lock.
type Conn struct {
	id    string
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	rooms map[string]struct{}
}

func newConn(id string, ws *websocket.Conn, buf int) *Conn {
	return &Conn{
		id:    id,
		ws:    ws,
		send:  make(chan []byte, buf),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// enqueue never blocks; false means the frame was dropped.
func (c *Conn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Conn) shutdown() { c.once.Do(func() { close(c.done) }) }

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the client
		h.log.Warn("websocket upgrade failed", quizgate.Fields{"remote": r.RemoteAddr, "err": err})
		return
	}

	c := newConn(uuid.NewString(), ws, h.buf)
	h.register(c)
	h.log.Info("websocket connected", quizgate.Fields{"conn": c.id, "remote": r.RemoteAddr})

	greeting, _ := json.Marshal(map[string]string{"id": c.id})
	h.deliver([]*Conn{c}, Frame{Event: "connected", Data: greeting})

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *Conn) {
	defer func() {
		h.unregister(c)
		_ = c.ws.Close()
		h.log.Info("websocket disconnected", quizgate.Fields{"conn": c.id})
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", quizgate.Fields{"conn": c.id, "err": err})
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil || f.Event == "" {
			h.log.Debug("websocket frame ignored", quizgate.Fields{"conn": c.id, "err": err})
			continue
		}
		h.handle(c, f)
	}
}

func (h *Hub) writePump(c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
