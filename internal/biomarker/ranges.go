/*
Package biomarker classifies lab values against static reference ranges.

Classification is pure and total: every float64, including NaN and negative
values, maps to exactly one Status.
*/
package biomarker

// Kind identifies a measured biomarker.
type Kind string

const (
	Hemoglobin Kind = "hemoglobin"
	Glucose    Kind = "glucose"
	CRP        Kind = "crp"
)

// Kinds lists every biomarker in display order.
var Kinds = []Kind{Hemoglobin, Glucose, CRP}

// Valid reports whether k is a known biomarker.
func (k Kind) Valid() bool {
	_, ok := referenceRanges[k]
	return ok
}

// Name returns the human readable biomarker name.
func (k Kind) Name() string {
	switch k {
	case Hemoglobin:
		return "Hemoglobin"
	case Glucose:
		return "Glucose"
	case CRP:
		return "CRP"
	}
	return string(k)
}

// Unit returns the unit the biomarker is measured in.
func (k Kind) Unit() string {
	switch k {
	case Hemoglobin:
		return "g/dL"
	case Glucose:
		return "mg/dL"
	case CRP:
		return "mg/L"
	}
	return ""
}

// Interval is a closed numeric interval.
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ReferenceRange pairs the normal band with the at-risk band for one biomarker.
// OneSided ranges only look at upper bounds.
type ReferenceRange struct {
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	Unit     string   `json:"unit"`
	Normal   Interval `json:"normal"`
	AtRisk   Interval `json:"at_risk"`
	OneSided bool     `json:"one_sided"`
}

var referenceRanges = map[Kind]ReferenceRange{
	Hemoglobin: {
		Kind:   Hemoglobin,
		Normal: Interval{Min: 12.0, Max: 15.5},
		AtRisk: Interval{Min: 11.0, Max: 11.9},
	},
	Glucose: {
		Kind:   Glucose,
		Normal: Interval{Min: 70, Max: 99},
		AtRisk: Interval{Min: 100, Max: 125},
	},
	CRP: {
		Kind:     CRP,
		Normal:   Interval{Min: 0, Max: 3.0},
		AtRisk:   Interval{Min: 3.1, Max: 10.0},
		OneSided: true,
	},
}

// Range returns the reference range for k.
func Range(k Kind) (ReferenceRange, bool) {
	r, ok := referenceRanges[k]
	if !ok {
		return ReferenceRange{}, false
	}
	r.Name = k.Name()
	r.Unit = k.Unit()
	return r, true
}

// Ranges returns a copy of the reference table in display order.
func Ranges() []ReferenceRange {
	out := make([]ReferenceRange, 0, len(Kinds))
	for _, k := range Kinds {
		r, _ := Range(k)
		out = append(out, r)
	}
	return out
}
