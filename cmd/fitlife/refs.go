package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/Guan-Eric/FitLife/internal/plan"
)

// dayRef resolves a day id or 1-based position.
func dayRef(p plan.Plan, ref string) (int, error) {
	if i := p.DayIndex(ref); i >= 0 {
		return i, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(p.Days) {
		return n - 1, nil
	}
	return -1, fmt.Errorf("no day %q in plan %s", ref, p.ID)
}

// exerciseRef resolves an exercise id or 1-based position within d.
func exerciseRef(d plan.Day, ref string) (int, error) {
	if i := d.ExerciseIndex(ref); i >= 0 {
		return i, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(d.Exercises) {
		return n - 1, nil
	}
	return -1, fmt.Errorf("no exercise %q in day %s", ref, d.ID)
}

// setRef resolves a set id or 1-based position. byID reports whether ref
// named the set by id.
func setRef(ex plan.Exercise, ref string) (index int, byID bool, err error) {
	if i := plan.SetIndex(ex.Sets, ref); i >= 0 {
		return i, true, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(ex.Sets) {
		return n - 1, false, nil
	}
	return -1, false, fmt.Errorf("no set %q in exercise %s", ref, ex.ID)
}

// target is a resolved day/exercise pair.
type target struct {
	day, exercise int
	dayID         string
	exerciseID    string
}

// setAfter finds the set with setID in p after an update. The position can
// differ from the one resolved before the write when the store held sets
// the local tree had not seen. Falls back to index when the id is gone.
func setAfter(p plan.Plan, t target, setID string, index int) (plan.Set, int) {
	if t.day < len(p.Days) && t.exercise < len(p.Days[t.day].Exercises) {
		if i := plan.SetIndex(p.Days[t.day].Exercises[t.exercise].Sets, setID); i >= 0 {
			index = i
		}
	}
	s, _ := p.SetAt(t.day, t.exercise, index)
	return s, index
}

func resolveExercise(p plan.Plan, dayArg, exArg string) (target, error) {
	di, err := dayRef(p, dayArg)
	if err != nil {
		return target{}, err
	}
	ei, err := exerciseRef(p.Days[di], exArg)
	if err != nil {
		return target{}, err
	}
	return target{
		day:        di,
		exercise:   ei,
		dayID:      p.Days[di].ID,
		exerciseID: p.Days[di].Exercises[ei].ID,
	}, nil
}

// confirm asks before a destructive change. Without a terminal it refuses
// unless yes is set.
func confirm(title string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("refusing to %s without --yes in a non-interactive session", title)
	}
	ok := false
	err := huh.NewConfirm().
		Title("Really " + title + "?").
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
