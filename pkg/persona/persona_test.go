package persona

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"dreamer/pkg/schema"
)

func record(traits *schema.PersonalityTraits) schema.DreamRecord {
	return schema.DreamRecord{Analysis: schema.Analysis{PersonalityTraits: traits}}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		records []schema.DreamRecord
		want    schema.PersonalityTraits
	}{
		{"empty", nil, schema.PersonalityTraits{}},
		{"single", []schema.DreamRecord{record(&schema.PersonalityTraits{Creativity: 12, Logic: 34, Emotion: 56, Spirituality: 78, Realism: 90})}, schema.PersonalityTraits{Creativity: 12, Logic: 34, Emotion: 56, Spirituality: 78, Realism: 90}},
		{
			"missing traits count as fifty",
			[]schema.DreamRecord{record(nil), record(&schema.PersonalityTraits{Creativity: 90, Logic: 10, Emotion: 10, Spirituality: 10, Realism: 10})},
			schema.PersonalityTraits{Creativity: 70, Logic: 30, Emotion: 30, Spirituality: 30, Realism: 30},
		},
		{
			"rounds to nearest",
			[]schema.DreamRecord{record(&schema.PersonalityTraits{Creativity: 1, Logic: 0, Emotion: 0, Spirituality: 100, Realism: 0}), record(&schema.PersonalityTraits{Creativity: 2, Logic: 1, Emotion: 0, Spirituality: 100, Realism: 0})},
			schema.PersonalityTraits{Creativity: 2, Logic: 1, Emotion: 0, Spirituality: 100, Realism: 0},
		},
		{
			"thirds",
			[]schema.DreamRecord{
				record(&schema.PersonalityTraits{Creativity: 0, Logic: 0, Emotion: 0, Spirituality: 0, Realism: 0}),
				record(&schema.PersonalityTraits{Creativity: 0, Logic: 0, Emotion: 0, Spirituality: 0, Realism: 0}),
				record(&schema.PersonalityTraits{Creativity: 1, Logic: 2, Emotion: 100, Spirituality: 0, Realism: 0}),
			},
			schema.PersonalityTraits{Creativity: 0, Logic: 1, Emotion: 33, Spirituality: 0, Realism: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.records))
		})
	}
}

func TestAggregateInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		records := make([]schema.DreamRecord, 1+r.IntN(8))
		for i := range records {
			if r.IntN(4) == 0 {
				continue
			}
			var v [5]int
			for j := range v {
				v[j] = r.IntN(101)
			}
			traits := schema.TraitsFromValues(v)
			records[i] = record(&traits)
		}

		got := Aggregate(records)
		for _, v := range got.Values() {
			assert.GreaterOrEqual(t, v, 0)
			assert.LessOrEqual(t, v, 100)
		}

		shuffled := append([]schema.DreamRecord(nil), records...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, got, Aggregate(shuffled))
	}
}

func TestSummarize(t *testing.T) {
	p := Summarize(nil)
	assert.True(t, p.Placeholder)
	assert.Zero(t, p.Count)

	p = Summarize([]schema.DreamRecord{record(nil)})
	assert.False(t, p.Placeholder)
	assert.Equal(t, 1, p.Count)
	assert.Equal(t, schema.NeutralTraits, p.Traits)
}
