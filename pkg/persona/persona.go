// Package persona derives the personality radar from stored dreams.
package persona

import (
	"math"

	"dreamer/pkg/schema"
)

// Aggregate returns the elementwise mean of the records' trait vectors,
// rounded half away from zero. Records without traits count as
// schema.NeutralTraits. No records yields the zero vector, which callers
// show as a placeholder rather than a score.
func Aggregate(records []schema.DreamRecord) schema.PersonalityTraits {
	if len(records) == 0 {
		return schema.PersonalityTraits{}
	}

	var sums [5]int
	for _, r := range records {
		for i, v := range r.Traits().Values() {
			sums[i] += v
		}
	}

	var mean [5]int
	n := float64(len(records))
	for i, sum := range sums {
		mean[i] = int(math.Round(float64(sum) / n))
	}
	return schema.TraitsFromValues(mean)
}

// Profile is the aggregate as served to clients.
type Profile struct {
	Traits schema.PersonalityTraits `json:"traits"`
	Count  int                      `json:"count"`
	// Placeholder is set when there are no records and Traits is all zero.
	Placeholder bool `json:"placeholder"`
}

func Summarize(records []schema.DreamRecord) Profile {
	return Profile{
		Traits:      Aggregate(records),
		Count:       len(records),
		Placeholder: len(records) == 0,
	}
}
