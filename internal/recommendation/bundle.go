package recommendation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Item is one titled recommendation.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Section is one of the three parts of a Bundle.
type Section struct {
	Introduction        string `json:"introduction"`
	Recommendations     []Item `json:"recommendations"`
	ScientificRationale string `json:"scientific_rationale"`
}

// Bundle is the structured advice returned for one test result.
type Bundle struct {
	Diet      Section `json:"diet_advice"`
	Exercise  Section `json:"exercise_routine"`
	Lifestyle Section `json:"lifestyle_tips"`
}

// Section keys, in bundle order.
const (
	SectionDiet      = "diet"
	SectionExercise  = "exercise"
	SectionLifestyle = "lifestyle"
)

var SectionOrder = []string{SectionDiet, SectionExercise, SectionLifestyle}

// NamedSection pairs a section with its key.
type NamedSection struct {
	Name string
	Section
}

// Sections returns the three sections in order: diet, exercise, lifestyle.
func (b Bundle) Sections() []NamedSection {
	return []NamedSection{
		{Name: SectionDiet, Section: b.Diet},
		{Name: SectionExercise, Section: b.Exercise},
		{Name: SectionLifestyle, Section: b.Lifestyle},
	}
}

// SetSection assigns a section by key.
func (b *Bundle) SetSection(name string, s Section) error {
	switch name {
	case SectionDiet:
		b.Diet = s
	case SectionExercise:
		b.Exercise = s
	case SectionLifestyle:
		b.Lifestyle = s
	default:
		return fmt.Errorf("%w: unknown section %q", ErrMalformedOutput, name)
	}
	return nil
}

// Validate checks that all three sections are complete.
func (b Bundle) Validate() error {
	var problems []string
	for _, s := range b.Sections() {
		if strings.TrimSpace(s.Introduction) == "" {
			problems = append(problems, s.Name+": introduction is empty")
		}
		if len(s.Recommendations) == 0 {
			problems = append(problems, s.Name+": no recommendations")
		}
		for i, item := range s.Recommendations {
			if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Description) == "" {
				problems = append(problems, fmt.Sprintf("%s: recommendation %d is missing a title or description", s.Name, i+1))
			}
		}
		if strings.TrimSpace(s.ScientificRationale) == "" {
			problems = append(problems, s.Name+": scientific rationale is empty")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrMalformedOutput, strings.Join(problems, "; "))
	}
	return nil
}

// ParseBundle decodes model output strictly. Unknown fields, trailing data,
// and incomplete sections are all rejected with ErrMalformedOutput.
func ParseBundle(raw string) (Bundle, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Bundle{}, fmt.Errorf("%w: unexpected data after JSON object", ErrMalformedOutput)
	}
	if err := rejectMissingSections(raw); err != nil {
		return Bundle{}, err
	}
	if err := b.Validate(); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

func rejectMissingSections(raw string) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	for _, key := range []string{"diet_advice", "exercise_routine", "lifestyle_tips"} {
		v, ok := top[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("%w: missing section %q", ErrMalformedOutput, key)
		}
	}
	return nil
}
