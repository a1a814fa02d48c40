package biomarker

import "encoding/json"

// Status is the tier a biomarker value falls into.
type Status int

const (
	Normal Status = iota
	AtRisk
	NeedsAttention
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "Normal"
	case AtRisk:
		return "At Risk"
	default:
		return "Needs Attention"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v {
	case "Normal":
		*s = Normal
	case "At Risk":
		*s = AtRisk
	default:
		*s = NeedsAttention
	}
	return nil
}

// Classify maps a raw value to a Status using the static reference table.
//
// For two-sided biomarkers only the low side has an at-risk band; a value
// above the normal upper bound is Needs Attention. Glucose values in the
// nominal at-risk band [100,125] therefore classify as Needs Attention.
func Classify(kind Kind, value float64) Status {
	r, ok := referenceRanges[kind]
	if !ok {
		return NeedsAttention
	}

	if r.OneSided {
		switch {
		case value <= r.Normal.Max:
			return Normal
		case value <= r.AtRisk.Max:
			return AtRisk
		default:
			return NeedsAttention
		}
	}

	switch {
	case value >= r.Normal.Min && value <= r.Normal.Max:
		return Normal
	case value >= r.AtRisk.Min && value < r.Normal.Min:
		return AtRisk
	default:
		return NeedsAttention
	}
}

// Overall returns the worst of the given statuses, or Normal for none.
func Overall(statuses ...Status) Status {
	worst := Normal
	for _, s := range statuses {
		if s > worst {
			worst = s
		}
	}
	return worst
}

// Reading is one classified biomarker value.
type Reading struct {
	Kind   Kind           `json:"kind"`
	Name   string         `json:"name"`
	Value  float64        `json:"value"`
	Unit   string         `json:"unit"`
	Status Status         `json:"status"`
	Range  ReferenceRange `json:"reference_range"`
}

// Evaluation is the full classification of a hemoglobin/glucose/CRP triple.
type Evaluation struct {
	Readings []Reading `json:"readings"`
	Overall  Status    `json:"overall"`
}

// Status returns the status recorded for kind.
func (e Evaluation) Status(kind Kind) (Status, bool) {
	for _, r := range e.Readings {
		if r.Kind == kind {
			return r.Status, true
		}
	}
	return NeedsAttention, false
}

// Evaluate classifies all three biomarkers.
func Evaluate(hemoglobin, glucose, crp float64) Evaluation {
	values := map[Kind]float64{Hemoglobin: hemoglobin, Glucose: glucose, CRP: crp}

	eval := Evaluation{Readings: make([]Reading, 0, len(Kinds))}
	statuses := make([]Status, 0, len(Kinds))
	for _, k := range Kinds {
		v := values[k]
		r, _ := Range(k)
		s := Classify(k, v)
		eval.Readings = append(eval.Readings, Reading{
			Kind:   k,
			Name:   r.Name,
			Value:  v,
			Unit:   r.Unit,
			Status: s,
			Range:  r,
		})
		statuses = append(statuses, s)
	}
	eval.Overall = Overall(statuses...)
	return eval
}
