package recommendation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() Bundle {
	return Bundle{
		Diet: Section{
			Introduction: "Your hemoglobin is slightly low.",
			Recommendations: []Item{
				{Title: "Eat lentils", Description: "Lentils are rich in non-heme iron."},
				{Title: "Add vitamin C", Description: "Pair iron-rich meals with citrus."},
			},
			ScientificRationale: "Hemoglobin of 11.2 g/dL with fatigue 7/10 suggests low iron stores.",
		},
		Exercise: Section{
			Introduction:        "Keep activity moderate.",
			Recommendations:     []Item{{Title: "Walk daily", Description: "30 minutes at a brisk pace."}},
			ScientificRationale: "Moderate activity supports oxygen delivery without overexertion.",
		},
		Lifestyle: Section{
			Introduction:        "Small habits help.",
			Recommendations:     []Item{{Title: "Sleep 8 hours", Description: "Rest lowers inflammation."}},
			ScientificRationale: "CRP of 5.1 mg/L indicates mild inflammation.",
		},
	}
}

func sampleBundleJSON(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(sampleBundle())
	require.NoError(t, err)
	return string(b)
}

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle("  " + sampleBundleJSON(t) + "\n")
	require.NoError(t, err)
	assert.Equal(t, sampleBundle(), b)

	sections := b.Sections()
	require.Len(t, sections, 3)
	assert.Equal(t, SectionDiet, sections[0].Name)
	assert.Equal(t, SectionExercise, sections[1].Name)
	assert.Equal(t, SectionLifestyle, sections[2].Name)
	assert.Equal(t, "Eat lentils", sections[0].Recommendations[0].Title)
}

func TestParseBundleRejectsMalformedOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "Diet Advice: eat more greens"},
		{"empty", ""},
		{"truncated", `{"diet_advice":{"introduction":"x"`},
		{"missing section", `{"diet_advice":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"exercise_routine":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"}}`},
		{"null section", `{"diet_advice":null,
			"exercise_routine":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"lifestyle_tips":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"}}`},
		{"string sections", `{"diet_advice":"eat","exercise_routine":"walk","lifestyle_tips":"sleep"}`},
		{"unknown field", `{"diet_advice":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"exercise_routine":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"lifestyle_tips":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"disclaimer":"x"}`},
		{"trailing data", `{"diet_advice":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"exercise_routine":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"},
			"lifestyle_tips":{"introduction":"a","recommendations":[{"title":"t","description":"d"}],"scientific_rationale":"r"}} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBundle(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestBundleValidate(t *testing.T) {
	require.NoError(t, sampleBundle().Validate())

	b := sampleBundle()
	b.Exercise.Introduction = " "
	assert.ErrorIs(t, b.Validate(), ErrMalformedOutput)

	b = sampleBundle()
	b.Lifestyle.Recommendations = nil
	assert.ErrorIs(t, b.Validate(), ErrMalformedOutput)

	b = sampleBundle()
	b.Diet.Recommendations[1].Description = ""
	err := b.Validate()
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Contains(t, err.Error(), "diet: recommendation 2")

	b = sampleBundle()
	b.Diet.ScientificRationale = ""
	assert.ErrorIs(t, b.Validate(), ErrMalformedOutput)
}

func TestSetSection(t *testing.T) {
	var b Bundle
	require.NoError(t, b.SetSection(SectionExercise, Section{Introduction: "x"}))
	assert.Equal(t, "x", b.Exercise.Introduction)
	assert.ErrorIs(t, b.SetSection("sleep", Section{}), ErrMalformedOutput)
}
