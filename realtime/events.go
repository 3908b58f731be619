package realtime

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/unkn0wn-root/quizgate"
	"github.com/unkn0wn-root/quizgate/internal/httpx"
)

// client events
const (
	JoinUserRoom = "join-user-room"
	JoinQuizRoom = "join-quiz-room"
	LeaveRoom    = "leave-room"
	QuizProgress = "quiz-progress"
	NewComment   = "new-comment"
	ScoreUpdate  = "score-update"
)

// server events
const (
	QuizProgressUpdate   = "quiz-progress-update"
	CommentAdded         = "comment-added"
	ScoreUpdated         = "score-updated"
	LeaderboardUpdate    = "leaderboard-update"
	DashboardStatsUpdate = "dashboard-stats-update"
)

func UserRoom(id string) string { return "user-" + id }
func QuizRoom(id string) string { return "quiz-" + id }

// handle applies one client event.
func (h *Hub) handle(c *Conn, f Frame) {
	switch f.Event {
	case JoinUserRoom:
		if id := scalar(f.Data); id != "" {
			h.Join(c, UserRoom(id))
		}
	case JoinQuizRoom:
		if id := scalar(f.Data); id != "" {
			h.Join(c, QuizRoom(id))
		}
	case LeaveRoom:
		if room := scalar(f.Data); room != "" {
			h.Leave(c, room)
		}
	case QuizProgress:
		if id := field(f.Data, "quizId"); id != "" {
			h.EmitTo(QuizRoom(id), Frame{Event: QuizProgressUpdate, Data: f.Data}, c)
		}
	case NewComment:
		if id := field(f.Data, "quizId"); id != "" {
			h.EmitTo(QuizRoom(id), Frame{Event: CommentAdded, Data: f.Data}, nil)
		}
	case ScoreUpdate:
		if id := field(f.Data, "userId"); id != "" {
			h.EmitTo(UserRoom(id), Frame{Event: ScoreUpdated, Data: f.Data}, nil)
		}
		stats, _ := json.Marshal(struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}{"score", f.Data})
		h.Broadcast(Frame{Event: DashboardStatsUpdate, Data: stats})
	default:
		h.log.Debug("unknown realtime event", quizgate.Fields{"conn": c.id, "event": f.Event})
	}
}

// scalar reads a JSON string or number as an id.
func scalar(raw json.RawMessage) string {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func field(raw json.RawMessage, key string) string {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	return scalar(obj[key])
}

// EmitHandler serves POST /api/realtime/emit for downstream services.
func (h *Hub) EmitHandler(w http.ResponseWriter, r *http.Request) {
	var e Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&e); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	n, err := h.Emit(e)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]int{"delivered": n})
}
