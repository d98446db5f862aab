package plan

// The functions in this file never modify their input. Each one copies only
// the slices on the path from the root to the node it changes; every other
// Day, Exercise and Set slice is shared with the input tree.

// AddDay appends day to the end of the plan's day sequence.
// The plan must already carry a server-assigned id.
func AddDay(p Plan, day Day) (Plan, error) {
	if p.ID == "" {
		return p, ErrNoPlanID
	}
	if day.PlanID == "" {
		day.PlanID = p.ID
	}
	days := make([]Day, len(p.Days), len(p.Days)+1)
	copy(days, p.Days)
	p.Days = append(days, day)
	return p, nil
}

// MergeDay replaces the day with the same id, or appends it when the plan
// has no such day. It is used to fold a canonical server copy into the tree.
func MergeDay(p Plan, day Day) Plan {
	i := p.DayIndex(day.ID)
	if i < 0 {
		next, err := AddDay(p, day)
		if err != nil {
			return p
		}
		return next
	}
	if day.Exercises == nil {
		day.Exercises = p.Days[i].Exercises
	}
	p.Days = replaceDay(p.Days, i, day)
	return p
}

// DeleteDay removes the day with the given id. The tree is returned
// unchanged when no day matches.
func DeleteDay(p Plan, dayID string) Plan {
	i := p.DayIndex(dayID)
	if i < 0 {
		return p
	}
	days := make([]Day, 0, len(p.Days)-1)
	days = append(days, p.Days[:i]...)
	p.Days = append(days, p.Days[i+1:]...)
	return p
}

// UpdateDay renames the day at dayIndex. Out-of-range indices leave the
// tree unchanged.
func UpdateDay(p Plan, dayIndex int, name string) Plan {
	if dayIndex < 0 || dayIndex >= len(p.Days) {
		return p
	}
	d := p.Days[dayIndex]
	d.Name = name
	p.Days = replaceDay(p.Days, dayIndex, d)
	return p
}

// RenamePlan returns p with a new name.
func RenamePlan(p Plan, name string) Plan {
	p.Name = name
	return p
}

// AddExercise appends ex to the named day. A nil Sets slice is replaced by
// an empty one so the exercise always persists an explicit sequence.
func AddExercise(p Plan, dayID string, ex Exercise) Plan {
	i := p.DayIndex(dayID)
	if i < 0 {
		return p
	}
	if ex.Sets == nil {
		ex.Sets = []Set{}
	}
	d := p.Days[i]
	exs := make([]Exercise, len(d.Exercises), len(d.Exercises)+1)
	copy(exs, d.Exercises)
	d.Exercises = append(exs, ex)
	p.Days = replaceDay(p.Days, i, d)
	return p
}

// DeleteExercise removes the exercise with the given id from the named day.
// Every other day is left untouched.
func DeleteExercise(p Plan, dayID, exerciseID string) Plan {
	i := p.DayIndex(dayID)
	if i < 0 {
		return p
	}
	d := p.Days[i]
	j := d.ExerciseIndex(exerciseID)
	if j < 0 {
		return p
	}
	exs := make([]Exercise, 0, len(d.Exercises)-1)
	exs = append(exs, d.Exercises[:j]...)
	d.Exercises = append(exs, d.Exercises[j+1:]...)
	p.Days = replaceDay(p.Days, i, d)
	return p
}

// ReplaceSets installs sets as the full set sequence of the named exercise.
// This is the local half of appending a set: the caller supplies the
// authoritative sequence it read from the store.
func ReplaceSets(p Plan, dayID, exerciseID string, sets []Set) Plan {
	i := p.DayIndex(dayID)
	if i < 0 {
		return p
	}
	j := p.Days[i].ExerciseIndex(exerciseID)
	if j < 0 {
		return p
	}
	if sets == nil {
		sets = []Set{}
	}
	return withSets(p, i, j, sets)
}

// DeleteSet removes the set at the index triple. Later sets shift down by
// one. An out-of-range triple leaves the tree unchanged.
func DeleteSet(p Plan, dayIndex, exerciseIndex, setIndex int) Plan {
	if _, ok := p.SetAt(dayIndex, exerciseIndex, setIndex); !ok {
		return p
	}
	old := p.Days[dayIndex].Exercises[exerciseIndex].Sets
	sets := make([]Set, 0, len(old)-1)
	sets = append(sets, old[:setIndex]...)
	sets = append(sets, old[setIndex+1:]...)
	return withSets(p, dayIndex, exerciseIndex, sets)
}

// UpdateSet replaces one scalar property of the set at the index triple.
// Unknown properties and out-of-range triples leave the tree unchanged.
func UpdateSet(p Plan, dayIndex, exerciseIndex, setIndex int, prop Property, value float64) Plan {
	s, ok := p.SetAt(dayIndex, exerciseIndex, setIndex)
	if !ok {
		return p
	}
	switch prop {
	case PropReps:
		s.Reps = value
	case PropWeightDuration:
		s.WeightDuration = value
	default:
		return p
	}
	old := p.Days[dayIndex].Exercises[exerciseIndex].Sets
	sets := make([]Set, len(old))
	copy(sets, old)
	sets[setIndex] = s
	return withSets(p, dayIndex, exerciseIndex, sets)
}

// DeleteSetByID removes the set with the given id from the named exercise.
func DeleteSetByID(p Plan, dayID, exerciseID, setID string) Plan {
	i, j, k := locateSet(p, dayID, exerciseID, setID)
	if k < 0 {
		return p
	}
	return DeleteSet(p, i, j, k)
}

// UpdateSetByID replaces one property of the set with the given id.
func UpdateSetByID(p Plan, dayID, exerciseID, setID string, prop Property, value float64) Plan {
	i, j, k := locateSet(p, dayID, exerciseID, setID)
	if k < 0 {
		return p
	}
	return UpdateSet(p, i, j, k, prop, value)
}

// SetIndex returns the position of the set with the given id, or -1.
func SetIndex(sets []Set, setID string) int {
	if setID == "" {
		return -1
	}
	for i := range sets {
		if sets[i].ID == setID {
			return i
		}
	}
	return -1
}

func locateSet(p Plan, dayID, exerciseID, setID string) (int, int, int) {
	i := p.DayIndex(dayID)
	if i < 0 {
		return -1, -1, -1
	}
	j := p.Days[i].ExerciseIndex(exerciseID)
	if j < 0 {
		return i, -1, -1
	}
	return i, j, SetIndex(p.Days[i].Exercises[j].Sets, setID)
}

// withSets copies the day and exercise slices on the path to (i, j) and
// installs sets there.
func withSets(p Plan, i, j int, sets []Set) Plan {
	d := p.Days[i]
	exs := make([]Exercise, len(d.Exercises))
	copy(exs, d.Exercises)
	exs[j].Sets = sets
	d.Exercises = exs
	p.Days = replaceDay(p.Days, i, d)
	return p
}

func replaceDay(days []Day, i int, d Day) []Day {
	out := make([]Day, len(days))
	copy(out, days)
	out[i] = d
	return out
}
