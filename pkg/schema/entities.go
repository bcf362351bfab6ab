package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dreamer/pkg/errs"
)

type Symbol struct {
	Symbol  string `json:"symbol" jsonschema_description:"A key symbol from the dream"`
	Meaning string `json:"meaning" jsonschema_description:"What the symbol represents psychologically"`
}

// PersonalityTraits is the 5-dimensional trait vector, each score in [0,100].
type PersonalityTraits struct {
	Creativity   int `json:"creativity" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Imagination and novelty"`
	Logic        int `json:"logic" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Rationality and coherence"`
	Emotion      int `json:"emotion" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Emotional intensity"`
	Spirituality int `json:"spirituality" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Connection to self and universe"`
	Realism      int `json:"realism" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Connection to reality"`
}

// NeutralTraits stands in for records written before traits existed.
var NeutralTraits = PersonalityTraits{50, 50, 50, 50, 50}

func (p PersonalityTraits) Values() [5]int {
	return [5]int{p.Creativity, p.Logic, p.Emotion, p.Spirituality, p.Realism}
}

func TraitsFromValues(v [5]int) PersonalityTraits {
	return PersonalityTraits{
		Creativity:   v[0],
		Logic:        v[1],
		Emotion:      v[2],
		Spirituality: v[3],
		Realism:      v[4],
	}
}

// TraitNames lists the trait keys in Values order.
var TraitNames = [5]string{"creativity", "logic", "emotion", "spirituality", "realism"}

func (p PersonalityTraits) Validate() error {
	for i, v := range p.Values() {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s score %d outside [0,100]", TraitNames[i], v)
		}
	}
	return nil
}

// Analysis is the structured result returned by the language model.
type Analysis struct {
	Symbols              []Symbol           `json:"symbols" jsonschema_description:"Key symbols and their symbolic meanings"`
	EmotionalTone        string             `json:"emotional_tone" jsonschema_description:"Overall emotional tone of the dream"`
	PsychologicalInsight string             `json:"psychological_insight" jsonschema_description:"In-depth psychological insight, 100-150 words"`
	LifeConnection       string             `json:"life_connection" jsonschema_description:"Potential connections to waking life, about 100 words"`
	Suggestions          []string           `json:"suggestions" jsonschema_description:"Three constructive suggestions"`
	PersonalityTraits    *PersonalityTraits `json:"personality_traits,omitempty" jsonschema_description:"Trait scores used for the persona radar"`
	ImagePrompt          string             `json:"image_prompt" jsonschema_description:"Detailed English prompt for image generation"`
}

// Validate treats the payload as untrusted: symbols must be present and any
// trait scores must be in range. Failures wrap errs.ErrMalformedAnalysis.
func (a *Analysis) Validate() error {
	if a.Symbols == nil {
		return fmt.Errorf("%w: symbols missing", errs.ErrMalformedAnalysis)
	}
	for i, s := range a.Symbols {
		if strings.TrimSpace(s.Symbol) == "" {
			return fmt.Errorf("%w: symbol %d is empty", errs.ErrMalformedAnalysis, i)
		}
	}
	if a.PersonalityTraits != nil {
		if err := a.PersonalityTraits.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrMalformedAnalysis, err)
		}
	}
	return nil
}

// DecodeAnalysis parses and validates a model reply. An empty
// personality_traits object counts as absent, so the record falls back to
// NeutralTraits; one missing some of the five scores is malformed.
func DecodeAnalysis(data []byte) (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", errs.ErrMalformedAnalysis, err)
	}

	var fields struct {
		Traits map[string]json.RawMessage `json:"personality_traits"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", errs.ErrMalformedAnalysis, err)
	}
	if fields.Traits != nil && len(fields.Traits) == 0 {
		a.PersonalityTraits = nil
	}
	if len(fields.Traits) > 0 {
		for _, name := range TraitNames {
			if v, ok := fields.Traits[name]; !ok || string(v) == "null" {
				return Analysis{}, fmt.Errorf("%w: personality_traits missing %s", errs.ErrMalformedAnalysis, name)
			}
		}
	}

	if err := a.Validate(); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

// DreamRecord is one persisted analysis. ID, Date, Dream and Analysis never
// change after creation; only the media URLs are updated.
type DreamRecord struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Dream    string    `json:"dream"`
	Analysis Analysis  `json:"analysis"`
	ImageURL string    `json:"imageUrl,omitempty"`
	VideoURL string    `json:"videoUrl,omitempty"`
}

// Traits returns the record's trait vector, substituting NeutralTraits when
// the analysis carries none.
func (r DreamRecord) Traits() PersonalityTraits {
	if r.Analysis.PersonalityTraits == nil {
		return NeutralTraits
	}
	return *r.Analysis.PersonalityTraits
}

// Patch lists the only fields an update may touch. Nil leaves a field as is.
type Patch struct {
	ImageURL *string `json:"imageUrl,omitempty"`
	VideoURL *string `json:"videoUrl,omitempty"`
}

func (p Patch) Apply(r *DreamRecord) {
	if p.ImageURL != nil {
		r.ImageURL = *p.ImageURL
	}
	if p.VideoURL != nil {
		r.VideoURL = *p.VideoURL
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the dream interview.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
