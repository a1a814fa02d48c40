package health

import (
	"errors"
	"math"
	"time"

	"dropcheck/internal/biomarker"
)

var ErrInvalidLabValues = errors.New("invalid lab values")

// LabValues is one hemoglobin (g/dL), glucose (mg/dL), CRP (mg/L) reading.
type LabValues struct {
	Hemoglobin float64 `json:"hemoglobin"`
	Glucose    float64 `json:"glucose"`
	CRP        float64 `json:"crp"`
}

// Evaluate classifies the three values.
func (l LabValues) Evaluate() biomarker.Evaluation {
	return biomarker.Evaluate(l.Hemoglobin, l.Glucose, l.CRP)
}

// Validate rejects non-finite values. Out-of-range values are accepted and
// classified like any other.
func (l LabValues) Validate() error {
	var errs FieldErrors
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"hemoglobin", l.Hemoglobin},
		{"glucose", l.Glucose},
		{"crp", l.CRP},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs.Add(f.name, "must be a finite number", nil)
		}
	}
	return errs.As(ErrInvalidLabValues)
}

// LabInput is a set of lab values as submitted by a client. A value left out
// of the body stays nil instead of reading as zero.
type LabInput struct {
	Hemoglobin *float64 `json:"hemoglobin"`
	Glucose    *float64 `json:"glucose"`
	CRP        *float64 `json:"crp"`
}

// Input returns l with every value present.
func (l LabValues) Input() LabInput {
	h, g, c := l.Hemoglobin, l.Glucose, l.CRP
	return LabInput{Hemoglobin: &h, Glucose: &g, CRP: &c}
}

// LabValues checks that all three values are present and finite. Missing
// values are reported as required fields of kind ErrInvalidLabValues.
func (in LabInput) LabValues() (LabValues, error) {
	var errs FieldErrors
	var labs LabValues
	for _, f := range []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"hemoglobin", in.Hemoglobin, &labs.Hemoglobin},
		{"glucose", in.Glucose, &labs.Glucose},
		{"crp", in.CRP, &labs.CRP},
	} {
		if f.src == nil {
			errs.Add(f.name, "is required", nil)
			continue
		}
		*f.dst = *f.src
	}
	if err := errs.As(ErrInvalidLabValues); err != nil {
		return LabValues{}, err
	}
	if err := labs.Validate(); err != nil {
		return LabValues{}, err
	}
	return labs, nil
}

// TestResult is a completed test as stored in history.
type TestResult struct {
	ID      string    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	LabValues
}

// EvaluatedResult is a TestResult together with its derived statuses.
type EvaluatedResult struct {
	TestResult
	Evaluation biomarker.Evaluation `json:"evaluation"`
}

func (r TestResult) Evaluated() EvaluatedResult {
	return EvaluatedResult{TestResult: r, Evaluation: r.Evaluate()}
}
