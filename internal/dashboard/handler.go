package dashboard

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	fitsync "github.com/Guan-Eric/FitLife/internal/sync"
)

// EventData is the payload of plan, day, exercise, set and cascade messages.
type EventData struct {
	Action     string `json:"action"`
	UserID     string `json:"user_id"`
	PlanID     string `json:"plan_id,omitempty"`
	DayID      string `json:"day_id,omitempty"`
	ExerciseID string `json:"exercise_id,omitempty"`
	SetIndex   *int   `json:"set_index,omitempty"`
	SetID      string `json:"set_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// StatsData counts the events seen since the handler started.
type StatsData struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	ActivePlans int            `json:"active_plans"`
	LastEventAt time.Time      `json:"last_event_at,omitempty"`
}

// Handler turns sync engine events into dashboard messages. It implements
// sync.Notifier and is safe for concurrent use.
type Handler struct {
	server *Server
	logger *log.Logger

	mu    sync.Mutex
	stats StatsData
	plans map[string]bool
}

var _ fitsync.Notifier = (*Handler)(nil)

// NewHandler creates a new event handler connected to a dashboard server.
// New clients receive the current stats as their welcome message.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
		stats:  StatsData{ByType: make(map[string]int)},
		plans:  make(map[string]bool),
	}
	server.SetWelcome(h.statsMessage)
	return h
}

// Notify broadcasts ev followed by the updated stats.
func (h *Handler) Notify(ev fitsync.Event) {
	msgType, action := classify(ev.Type)

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	h.mu.Lock()
	h.stats.Total++
	h.stats.ByType[string(ev.Type)]++
	h.stats.LastEventAt = ts
	if ev.PlanID != "" {
		switch ev.Type {
		case fitsync.EventPlanDeleted:
			delete(h.plans, ev.UserID+"/"+ev.PlanID)
		default:
			h.plans[ev.UserID+"/"+ev.PlanID] = true
		}
	}
	h.stats.ActivePlans = len(h.plans)
	h.mu.Unlock()

	data := EventData{
		Action:     action,
		UserID:     ev.UserID,
		PlanID:     ev.PlanID,
		DayID:      ev.DayID,
		ExerciseID: ev.ExerciseID,
		SetIndex:   ev.SetIndex,
		SetID:      ev.SetID,
		Name:       ev.Name,
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal event data: %v", err)
		return
	}

	h.server.Broadcast(Message{Type: msgType, Timestamp: ts, Data: dataJSON})
	h.server.Broadcast(h.statsMessage())
}

// GetStats returns a copy of the current statistics.
func (h *Handler) GetStats() StatsData {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := h.stats
	out.ByType = make(map[string]int, len(h.stats.ByType))
	for k, v := range h.stats.ByType {
		out.ByType[k] = v
	}
	return out
}

func (h *Handler) statsMessage() Message {
	dataJSON, err := json.Marshal(h.GetStats())
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
	}
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: dataJSON}
}

// classify splits an event type such as "set_updated" into its message type
// and action.
func classify(t fitsync.EventType) (MessageType, string) {
	subject, action, _ := strings.Cut(string(t), "_")
	switch subject {
	case "plan":
		return MessageTypePlanUpdate, action
	case "day":
		return MessageTypeDayUpdate, action
	case "exercise":
		return MessageTypeExerciseUpdate, action
	case "set":
		return MessageTypeSetUpdate, action
	default:
		return MessageTypeCascade, action
	}
}
