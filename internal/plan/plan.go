// Package plan provides the in-memory workout plan tree and the pure
// transformations applied to it.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Placeholder names given to freshly created nodes before the user edits them.
const (
	DefaultPlanName = "New Plan"
	DefaultDayName  = "New Day"
)

// ErrNoPlanID is returned when an operation needs a plan that has not been
// assigned a server id yet.
var ErrNoPlanID = errors.New("plan has no id")

// Plan is the top-level authored workout program.
type Plan struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Days []Day  `json:"days,omitempty" yaml:"days,omitempty"`
}

// Day is one training session within a Plan.
type Day struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	PlanID    string     `json:"planId,omitempty" yaml:"planId,omitempty"`
	Exercises []Exercise `json:"exercises,omitempty" yaml:"exercises,omitempty"`
}

// Exercise is a movement copied from the exercise catalog together with the
// sets the user planned for it.
type Exercise struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Cardio           bool     `json:"cardio" yaml:"cardio"`
	Category         string   `json:"category,omitempty" yaml:"category,omitempty"`
	Equipment        string   `json:"equipment,omitempty" yaml:"equipment,omitempty"`
	Level            string   `json:"level,omitempty" yaml:"level,omitempty"`
	Instructions     []string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	SecondaryMuscles []string `json:"secondaryMuscles,omitempty" yaml:"secondaryMuscles,omitempty"`
	PrimaryMuscles   []string `json:"primaryMuscles,omitempty" yaml:"primaryMuscles,omitempty"`
	Sets             []Set    `json:"sets" yaml:"sets"`
}

// Set is one performed unit of an Exercise. For cardio exercises only
// WeightDuration (a duration) is meaningful; otherwise Reps and
// WeightDuration (a weight) both are.
type Set struct {
	ID             string  `json:"id,omitempty" yaml:"id,omitempty"`
	Reps           float64 `json:"reps" yaml:"reps"`
	WeightDuration float64 `json:"weight_duration" yaml:"weight_duration"`
}

// Property names a scalar field of a Set.
type Property string

const (
	PropReps           Property = "reps"
	PropWeightDuration Property = "weight_duration"
)

// ParseProperty converts a user supplied field name to a Property.
func ParseProperty(s string) (Property, error) {
	switch Property(s) {
	case PropReps, PropWeightDuration:
		return Property(s), nil
	default:
		return "", fmt.Errorf("unknown set property %q (want %q or %q)", s, PropReps, PropWeightDuration)
	}
}

// NewSet returns a zero-valued Set with a fresh durable id.
func NewSet() Set {
	return Set{ID: uuid.NewString()}
}

// Meaningful reports which Set properties carry data for this exercise.
func (e *Exercise) Meaningful() []Property {
	if e.Cardio {
		return []Property{PropWeightDuration}
	}
	return []Property{PropReps, PropWeightDuration}
}

// checkID requires a non-empty id usable as one store path segment.
func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("id %q must not contain '/'", id)
	}
	return nil
}

// Validate checks the Plan and every node below it.
func (p *Plan) Validate() error {
	if err := checkID(p.ID); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	seen := make(map[string]bool, len(p.Days))
	for i := range p.Days {
		d := &p.Days[i]
		if err := d.Validate(); err != nil {
			return fmt.Errorf("day %d: %w", i, err)
		}
		if seen[d.ID] {
			return fmt.Errorf("day %d: duplicate id %s", i, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// Validate checks the Day and its exercises.
func (d *Day) Validate() error {
	if err := checkID(d.ID); err != nil {
		return err
	}
	for i := range d.Exercises {
		if err := d.Exercises[i].Validate(); err != nil {
			return fmt.Errorf("exercise %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks the Exercise and its sets.
func (e *Exercise) Validate() error {
	if err := checkID(e.ID); err != nil {
		return err
	}
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	for i, s := range e.Sets {
		if s.Reps < 0 {
			return fmt.Errorf("set %d: reps must not be negative (got %v)", i, s.Reps)
		}
		if s.WeightDuration < 0 {
			return fmt.Errorf("set %d: weight_duration must not be negative (got %v)", i, s.WeightDuration)
		}
	}
	return nil
}

// DayIndex returns the position of the day with the given id, or -1.
func (p Plan) DayIndex(dayID string) int {
	for i := range p.Days {
		if p.Days[i].ID == dayID {
			return i
		}
	}
	return -1
}

// ExerciseIndex returns the position of the exercise with the given id, or -1.
func (d Day) ExerciseIndex(exerciseID string) int {
	for i := range d.Exercises {
		if d.Exercises[i].ID == exerciseID {
			return i
		}
	}
	return -1
}

// SetAt returns the set addressed by the index triple.
func (p Plan) SetAt(dayIndex, exerciseIndex, setIndex int) (Set, bool) {
	if dayIndex < 0 || dayIndex >= len(p.Days) {
		return Set{}, false
	}
	exs := p.Days[dayIndex].Exercises
	if exerciseIndex < 0 || exerciseIndex >= len(exs) {
		return Set{}, false
	}
	sets := exs[exerciseIndex].Sets
	if setIndex < 0 || setIndex >= len(sets) {
		return Set{}, false
	}
	return sets[setIndex], true
}

// Counts returns the number of days, exercises and sets in the tree.
func (p Plan) Counts() (days, exercises, sets int) {
	days = len(p.Days)
	for _, d := range p.Days {
		exercises += len(d.Exercises)
		for _, e := range d.Exercises {
			sets += len(e.Sets)
		}
	}
	return days, exercises, sets
}

// Clone returns a deep copy sharing no slices with p.
func (p Plan) Clone() Plan {
	out := p
	if p.Days != nil {
		out.Days = make([]Day, len(p.Days))
		for i, d := range p.Days {
			out.Days[i] = d.clone()
		}
	}
	return out
}

func (d Day) clone() Day {
	out := d
	if d.Exercises != nil {
		out.Exercises = make([]Exercise, len(d.Exercises))
		for i, e := range d.Exercises {
			out.Exercises[i] = e.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the exercise.
func (e Exercise) Clone() Exercise {
	out := e
	out.Instructions = cloneStrings(e.Instructions)
	out.SecondaryMuscles = cloneStrings(e.SecondaryMuscles)
	out.PrimaryMuscles = cloneStrings(e.PrimaryMuscles)
	if e.Sets != nil {
		out.Sets = append([]Set(nil), e.Sets...)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
