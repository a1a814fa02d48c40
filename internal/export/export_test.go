package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"dropcheck/internal/health"
	"dropcheck/internal/recommendation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() []health.TestResult {
	return []health.TestResult{
		{ID: "b", TakenAt: time.Date(2023, 10, 26, 9, 0, 0, 0, time.UTC), LabValues: health.LabValues{Hemoglobin: 13.5, Glucose: 98, CRP: 1.2}},
		{ID: "a", TakenAt: time.Date(2023, 10, 19, 9, 0, 0, 0, time.UTC), LabValues: health.LabValues{Hemoglobin: 12.8, Glucose: 115, CRP: 2.5}},
	}
}

func TestWriteHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, sampleHistory()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,hemoglobin_g_dL,glucose_mg_dL,crp_mg_L", lines[0])
	assert.Equal(t, "2023-10-26,13.5,98,1.2", lines[1])
	assert.Equal(t, "2023-10-19,12.8,115,2.5", lines[2])
}

func TestHistoryCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, sampleHistory()))

	rows, err := ReadHistoryCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2023-10-26", rows[0].Date.Format("2006-01-02"))
	assert.Equal(t, sampleHistory()[0].LabValues, rows[0].LabValues)
	assert.Equal(t, sampleHistory()[1].LabValues, rows[1].LabValues)
}

func TestReadHistoryCSVRejectsBadInput(t *testing.T) {
	for _, raw := range []string{
		"",
		"when,hb,glu,crp\n",
		"date,hemoglobin_g_dL,glucose_mg_dL,crp_mg_L\nyesterday,1,2,3\n",
		"date,hemoglobin_g_dL,glucose_mg_dL,crp_mg_L\n2023-10-26,x,2,3\n",
		"date,hemoglobin_g_dL,glucose_mg_dL,crp_mg_L\n2023-10-26,1,2\n",
	} {
		_, err := ReadHistoryCSV(strings.NewReader(raw))
		assert.ErrorIs(t, err, ErrBadFormat, "input %q", raw)
	}
}

func sampleBundle() recommendation.Bundle {
	return recommendation.Bundle{
		Diet: recommendation.Section{
			Introduction: "Focus on iron.",
			Recommendations: []recommendation.Item{
				{Title: "Spinach, lentils", Description: "Leafy greens and legumes, twice a day."},
				{Title: "Vitamin C", Description: "Have citrus with \"iron-rich\" meals."},
				{Title: "Tea timing", Description: "Avoid tea within an hour of meals."},
			},
			ScientificRationale: "Hemoglobin 11.2 g/dL is below 12.0.",
		},
		Exercise: recommendation.Section{
			Introduction:        "Stay gently active.",
			Recommendations:     []recommendation.Item{{Title: "Walking", Description: "30 minutes daily.\nBrisk pace."}},
			ScientificRationale: "Fatigue 7/10 calls for low intensity.",
		},
		Lifestyle: recommendation.Section{
			Introduction: "Rest and recover.",
			Recommendations: []recommendation.Item{
				{Title: "Sleep", Description: "7 to 9 hours."},
				{Title: "Hydrate", Description: "2 liters a day."},
			},
			ScientificRationale: "CRP 5.1 mg/L suggests mild inflammation.",
		},
	}
}

func TestBundleCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBundleCSV(&buf, sampleBundle()))

	b, err := ReadBundleCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle(), b)

	sections := b.Sections()
	assert.Equal(t, []string{"diet", "exercise", "lifestyle"}, []string{sections[0].Name, sections[1].Name, sections[2].Name})
	assert.Equal(t, "Tea timing", sections[0].Recommendations[2].Title)
	assert.Equal(t, "Avoid tea within an hour of meals.", sections[0].Recommendations[2].Description)
}

func TestBundleCSVLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBundleCSV(&buf, sampleBundle()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "section,kind,title,text\n"))
	assert.Contains(t, out, "diet,introduction,,Focus on iron.\n")
	assert.Contains(t, out, `diet,recommendation,"Spinach, lentils","Leafy greens and legumes, twice a day."`)
	assert.Less(t, strings.Index(out, "diet,rationale"), strings.Index(out, "exercise,introduction"))
	assert.Less(t, strings.Index(out, "exercise,rationale"), strings.Index(out, "lifestyle,introduction"))
}

func TestReadBundleCSVRejectsReorderedSections(t *testing.T) {
	raw := "section,kind,title,text\n" +
		"exercise,introduction,,a\nexercise,recommendation,t,d\nexercise,rationale,,r\n" +
		"diet,introduction,,a\ndiet,recommendation,t,d\ndiet,rationale,,r\n" +
		"lifestyle,introduction,,a\nlifestyle,recommendation,t,d\nlifestyle,rationale,,r\n"
	_, err := ReadBundleCSV(strings.NewReader(raw))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestReadBundleCSVRejectsIncompleteBundle(t *testing.T) {
	raw := "section,kind,title,text\n" +
		"diet,introduction,,a\ndiet,recommendation,t,d\ndiet,rationale,,r\n"
	_, err := ReadBundleCSV(strings.NewReader(raw))
	assert.ErrorIs(t, err, ErrBadFormat)

	raw = "section,kind,title,text\n" +
		"diet,introduction,,a\ndiet,rationale,,r\n" +
		"exercise,introduction,,a\nexercise,recommendation,t,d\nexercise,rationale,,r\n" +
		"lifestyle,introduction,,a\nlifestyle,recommendation,t,d\nlifestyle,rationale,,r\n"
	_, err = ReadBundleCSV(strings.NewReader(raw))
	assert.ErrorIs(t, err, recommendation.ErrMalformedOutput)
}

func TestBundleJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBundleJSON(&buf, sampleBundle()))

	b, err := ReadBundleJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleBundle(), b)
}

func TestBundleFilename(t *testing.T) {
	assert.Equal(t, "dropcheck_recommendations_abc.csv", BundleFilename("abc", "csv"))
}
