package store

import (
	"fmt"
	"strings"
)

// Collection names used by the plan hierarchy and the exercise catalog.
const (
	Users     = "Users"
	Plans     = "Plans"
	Days      = "Days"
	Exercise  = "Exercise"
	Exercises = "Exercises"
)

// Path addresses a document or a collection. Segments alternate between
// collection names and document ids, so a document path has an even number
// of segments and a collection path an odd number.
type Path string

// NewPath joins segments into a Path.
func NewPath(segments ...string) Path {
	return Path(strings.Join(segments, "/"))
}

// Segments splits the path into its components.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), "/")
}

// IsDocument reports whether p addresses a document.
func (p Path) IsDocument() bool {
	n := len(p.Segments())
	return n > 0 && n%2 == 0
}

// IsCollection reports whether p addresses a collection.
func (p Path) IsCollection() bool {
	return len(p.Segments())%2 == 1
}

// Doc returns the path of document id inside collection p.
func (p Path) Doc(id string) Path {
	return Path(string(p) + "/" + id)
}

// Collection returns the path of a sub-collection of document p.
func (p Path) Collection(name string) Path {
	return Path(string(p) + "/" + name)
}

// ID returns the last segment of a document path.
func (p Path) ID() string {
	s := string(p)
	return s[strings.LastIndex(s, "/")+1:]
}

// Parent returns the collection containing document p, or the document
// owning collection p.
func (p Path) Parent() Path {
	s := string(p)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return ""
	}
	return Path(s[:i])
}

func (p Path) String() string { return string(p) }

func (p Path) validate(document bool) error {
	segs := p.Segments()
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, p)
		}
	}
	if document && !p.IsDocument() {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, p)
	}
	if !document && !p.IsCollection() {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, p)
	}
	return nil
}

// CheckID refuses an id that would split into more than one path segment.
func CheckID(id string) error {
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: id %q contains '/'", ErrInvalidPath, id)
	}
	return nil
}

// UserDoc is Users/{uid}.
func UserDoc(userID string) Path { return NewPath(Users, userID) }

// PlansCol is Users/{uid}/Plans.
func PlansCol(userID string) Path { return UserDoc(userID).Collection(Plans) }

// PlanDoc is Users/{uid}/Plans/{pid}.
func PlanDoc(userID, planID string) Path { return PlansCol(userID).Doc(planID) }

// DaysCol is Users/{uid}/Plans/{pid}/Days.
func DaysCol(userID, planID string) Path { return PlanDoc(userID, planID).Collection(Days) }

// DayDoc is Users/{uid}/Plans/{pid}/Days/{did}.
func DayDoc(userID, planID, dayID string) Path { return DaysCol(userID, planID).Doc(dayID) }

// ExerciseCol is Users/{uid}/Plans/{pid}/Days/{did}/Exercise.
func ExerciseCol(userID, planID, dayID string) Path {
	return DayDoc(userID, planID, dayID).Collection(Exercise)
}

// ExerciseDoc is Users/{uid}/Plans/{pid}/Days/{did}/Exercise/{eid}.
func ExerciseDoc(userID, planID, dayID, exerciseID string) Path {
	return ExerciseCol(userID, planID, dayID).Doc(exerciseID)
}

// CatalogCol is the top-level exercise catalog collection.
func CatalogCol() Path { return NewPath(Exercises) }

// CatalogDoc is Exercises/{id}.
func CatalogDoc(id string) Path { return CatalogCol().Doc(id) }
