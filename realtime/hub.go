// Package realtime is the websocket event hub. Connections join named rooms;
// events fan out to a room or to every connection. Delivery is at-most-once:
// each connection owns a bounded send buffer and a full buffer drops the frame.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/unkn0wn-root/quizgate"
)

const defaultSendBuffer = 64

// Frame is the wire shape of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is a server-originated event. An empty Room broadcasts.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Stats struct {
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
	Dropped     uint64 `json:"dropped"`
}

type Options struct {
	Logger     quizgate.Logger // if nil, NopLogger is used
	Hooks      quizgate.Hooks  // if nil, NopHooks is used
	SendBuffer int             // per connection; 0 => 64
	// ClientURL is the only accepted Origin. Empty accepts any origin.
	ClientURL string
}

type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]*Conn

	log      quizgate.Logger
	hooks    quizgate.Hooks
	buf      int
	upgrader websocket.Upgrader
	dropped  atomic.Uint64
}

func NewHub(opts Options) *Hub {
	h := &Hub{
		conns: make(map[string]*Conn),
		rooms: make(map[string]map[string]*Conn),
		log:   opts.Logger,
		hooks: opts.Hooks,
		buf:   opts.SendBuffer,
	}
	if h.log == nil {
		h.log = quizgate.NopLogger{}
	}
	if h.hooks == nil {
		h.hooks = quizgate.NopHooks{}
	}
	if h.buf <= 0 {
		h.buf = defaultSendBuffer
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.ClientURL),
	}
	return h
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

// unregister drops c and all of its memberships.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()
	c.shutdown()
}

// Join adds c to room. Joining twice is a no-op.
func (h *Hub) Join(c *Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Conn)
		h.rooms[room] = members
	}
	members[c.id] = c
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Conn, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(c *Conn, room string) {
	delete(c.rooms, room)
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, c.id)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Members reports how many connections are in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// EmitTo sends f to every member of room except the given connection
// (nil excludes nobody). It returns the number of frames queued.
func (h *Hub) EmitTo(room string, f Frame, except *Conn) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.deliver(targets, f)
}

// Broadcast sends f to every connection.
func (h *Hub) Broadcast(f Frame) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, f)
}

// Emit routes a server-originated event to its room, or to everyone.
func (h *Hub) Emit(e Envelope) (int, error) {
	if e.Event == "" {
		return 0, &quizgate.ValidationError{Field: "event", Message: "event is required"}
	}
	f := Frame{Event: e.Event, Data: e.Data}
	if e.Room == "" {
		return h.Broadcast(f), nil
	}
	return h.EmitTo(e.Room, f, nil), nil
}

func (h *Hub) deliver(targets []*Conn, f Frame) int {
	if len(targets) == 0 {
		return 0
	}
	b, err := json.Marshal(f)
	if err != nil {
		h.log.Error("realtime frame encode failed", quizgate.Fields{"event": f.Event, "err": err})
		return 0
	}
	n := 0
	for _, c := range targets {
		if c.enqueue(b) {
			n++
			continue
		}
		h.dropped.Add(1)
		h.log.Warn("realtime frame dropped", quizgate.Fields{"conn": c.id, "event": f.Event})
		h.hooks.FrameDropped(c.id, f.Event)
	}
	return n
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		Connections: len(h.conns),
		Rooms:       len(h.rooms),
		Dropped:     h.dropped.Load(),
	}
}

// Close disconnects every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		h.unregister(c)
	}
}

func originChecker(clientURL string) func(*http.Request) bool {
	if clientURL == "" {
		return func(*http.Request) bool { return true }
	}
	want := trimSlash(clientURL)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || trimSlash(origin) == want
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
