package sync

import "time"

// EventType names a successful engine mutation.
type EventType string

const (
	EventPlanCreated     EventType = "plan_created"
	EventPlanRenamed     EventType = "plan_renamed"
	EventPlanDeleted     EventType = "plan_deleted"
	EventPlanSaved       EventType = "plan_saved"
	EventPlanImported    EventType = "plan_imported"
	EventDayAdded        EventType = "day_added"
	EventDayRenamed      EventType = "day_renamed"
	EventDayDeleted      EventType = "day_deleted"
	EventExerciseAdded   EventType = "exercise_added"
	EventExerciseDeleted EventType = "exercise_deleted"
	EventSetAdded        EventType = "set_added"
	EventSetUpdated      EventType = "set_updated"
	EventSetDeleted      EventType = "set_deleted"
	EventCascadeResumed  EventType = "cascade_resumed"
)

// Event describes one mutation that reached the store.
type Event struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"userId"`
	PlanID     string    `json:"planId,omitempty"`
	DayID      string    `json:"dayId,omitempty"`
	ExerciseID string    `json:"exerciseId,omitempty"`
	SetIndex   *int      `json:"setIndex,omitempty"`
	SetID      string    `json:"setId,omitempty"`
	Name       string    `json:"name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier receives engine events. Notify must not block for long; it is
// called synchronously after the store write.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(ev).
func (f NotifierFunc) Notify(ev Event) { f(ev) }
