package plan_test

import (
	"fmt"

	"github.com/Guan-Eric/FitLife/internal/plan"
)

func ExampleUpdateSet() {
	p := plan.Plan{
		ID: "p1",
		Days: []plan.Day{{
			ID: "d1",
			Exercises: []plan.Exercise{{
				ID:   "Barbell_Squat",
				Sets: []plan.Set{{Reps: 5, WeightDuration: 100}, {Reps: 5, WeightDuration: 100}},
			}},
		}},
	}

	next := plan.UpdateSet(p, 0, 0, 1, plan.PropWeightDuration, 105)

	fmt.Println(p.Days[0].Exercises[0].Sets[1].WeightDuration)
	fmt.Println(next.Days[0].Exercises[0].Sets[1].WeightDuration)
	// Output:
	// 100
	// 105
}

func ExampleDeleteSet() {
	p := plan.Plan{
		ID: "p1",
		Days: []plan.Day{{
			ID: "d1",
			Exercises: []plan.Exercise{{
				ID:   "Running",
				Sets: []plan.Set{{WeightDuration: 10}, {WeightDuration: 20}, {WeightDuration: 30}},
			}},
		}},
	}

	next := plan.DeleteSet(p, 0, 0, 0)
	for _, s := range next.Days[0].Exercises[0].Sets {
		fmt.Println(s.WeightDuration)
	}
	// Output:
	// 20
	// 30
}
