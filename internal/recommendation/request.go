package recommendation

import (
	"errors"
	"math"
	"strings"

	"dropcheck/internal/health"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrGenerationFailed = errors.New("recommendation generation failed")
	ErrMalformedOutput  = errors.New("malformed model output")
)

// Request is everything the model sees about one user and one test.
type Request struct {
	Age                int      `json:"age"`
	HeightCm           float64  `json:"height_cm"`
	WeightKg           float64  `json:"weight_kg"`
	Gender             string   `json:"gender"`
	FamilyHistory      []string `json:"family_history"`
	RegularMedications string   `json:"regular_medications"`

	// Menstrual-cycle fields; only allowed when Gender is Female.
	DurationOfPeriods         *float64 `json:"duration_of_periods,omitempty"`
	SeverityOfPeriods         *string  `json:"severity_of_periods,omitempty"`
	IrregularCyclesOrSpotting *bool    `json:"irregular_cycles_or_spotting,omitempty"`

	DietaryPreferences string   `json:"dietary_preferences"`
	SupplementUse      []string `json:"supplement_use"`

	FatigueLevel      int  `json:"fatigue_level"`
	DizzinessLevel    int  `json:"dizziness_level"`
	PaleSkinOrNails   int  `json:"pale_skin_or_nails"`
	ShortnessOfBreath int  `json:"shortness_of_breath"`
	Polyuria          *int `json:"polyuria,omitempty"`
	Polydipsia        *int `json:"polydipsia,omitempty"`
	Polyphagia        *int `json:"polyphagia,omitempty"`

	// Lab values are required; nil means the value was never supplied.
	Hemoglobin *float64 `json:"hemoglobin"`
	Glucose    *float64 `json:"glucose"`
	CRP        *float64 `json:"crp"`
}

// LabInput returns the request's lab values as submitted.
func (r Request) LabInput() health.LabInput {
	return health.LabInput{Hemoglobin: r.Hemoglobin, Glucose: r.Glucose, CRP: r.CRP}
}

// Labs returns the request's lab values. Missing values read as zero, so
// only call it on a request that passed Validate.
func (r Request) Labs() health.LabValues {
	var labs health.LabValues
	if r.Hemoglobin != nil {
		labs.Hemoglobin = *r.Hemoglobin
	}
	if r.Glucose != nil {
		labs.Glucose = *r.Glucose
	}
	if r.CRP != nil {
		labs.CRP = *r.CRP
	}
	return labs
}

// FromProfile builds a Request from a stored profile and one set of lab values.
func FromProfile(p health.UserProfile, labs health.LabValues) Request {
	p = p.Normalize()

	meds := p.RegularMedications
	if meds == "" {
		meds = "None"
	}
	supplements := make([]string, len(p.SupplementUse))
	copy(supplements, p.SupplementUse)
	in := labs.Input()

	req := Request{
		Age:                p.Age,
		HeightCm:           p.Height,
		WeightKg:           p.Weight,
		Gender:             p.Gender,
		FamilyHistory:      p.FamilyHistoryList(),
		RegularMedications: meds,
		DietaryPreferences: p.DietaryPreferences,
		SupplementUse:      supplements,
		FatigueLevel:       p.FatigueLevel,
		DizzinessLevel:     p.DizzinessLevel,
		PaleSkinOrNails:    p.PaleSkinOrNails,
		ShortnessOfBreath:  p.ShortnessOfBreath,
		Polyuria:           intPtr(p.Polyuria),
		Polydipsia:         intPtr(p.Polydipsia),
		Polyphagia:         intPtr(p.Polyphagia),
		Hemoglobin:         in.Hemoglobin,
		Glucose:            in.Glucose,
		CRP:                in.CRP,
	}

	if p.Gender == health.GenderFemale {
		if p.DurationOfPeriods != nil {
			d := *p.DurationOfPeriods
			req.DurationOfPeriods = &d
		}
		if p.SeverityOfPeriods != nil {
			s := *p.SeverityOfPeriods
			req.SeverityOfPeriods = &s
		}
		irregular := p.IrregularCyclesOrSpotting
		req.IrregularCyclesOrSpotting = &irregular
	}
	return req
}

func intPtr(v int) *int {
	return &v
}

// Result is the outcome of Validate: either OK or a list of field errors.
type Result struct {
	Errors health.FieldErrors
}

func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Err returns nil for a valid request, otherwise a *health.ValidationError
// matching ErrInvalidRequest.
func (r Result) Err() error {
	return r.Errors.As(ErrInvalidRequest)
}

// Validate checks a Request before anything is sent to the model.
func Validate(r Request) Result {
	var errs health.FieldErrors

	if r.Age < 1 || r.Age > 120 {
		errs.Add("age", "must be between 1 and 120", r.Age)
	}
	if !positiveFinite(r.HeightCm) {
		errs.Add("height_cm", "must be a positive number", r.HeightCm)
	}
	if !positiveFinite(r.WeightKg) {
		errs.Add("weight_kg", "must be a positive number", r.WeightKg)
	}

	switch {
	case r.Gender == "":
		errs.Add("gender", "is required", nil)
	case !health.ValidGender(r.Gender):
		errs.Add("gender", "must be one of Male, Female, Other", r.Gender)
	}
	switch {
	case r.DietaryPreferences == "":
		errs.Add("dietary_preferences", "is required", nil)
	case !health.ValidDiet(r.DietaryPreferences):
		errs.Add("dietary_preferences", "must be Vegetarian or Non-vegetarian", r.DietaryPreferences)
	}
	if strings.TrimSpace(r.RegularMedications) == "" {
		errs.Add("regular_medications", "is required", nil)
	}
	if r.FamilyHistory == nil {
		errs.Add("family_history", "is required", nil)
	}
	if r.SupplementUse == nil {
		errs.Add("supplement_use", "is required", nil)
	}

	for _, s := range []struct {
		field string
		value int
	}{
		{"fatigue_level", r.FatigueLevel},
		{"dizziness_level", r.DizzinessLevel},
		{"pale_skin_or_nails", r.PaleSkinOrNails},
		{"shortness_of_breath", r.ShortnessOfBreath},
	} {
		checkScore(&errs, s.field, s.value)
	}
	for _, s := range []struct {
		field string
		value *int
	}{
		{"polyuria", r.Polyuria},
		{"polydipsia", r.Polydipsia},
		{"polyphagia", r.Polyphagia},
	} {
		if s.value != nil {
			checkScore(&errs, s.field, *s.value)
		}
	}

	hasMenstrual := r.DurationOfPeriods != nil || r.SeverityOfPeriods != nil || r.IrregularCyclesOrSpotting != nil
	if hasMenstrual && r.Gender != health.GenderFemale {
		errs.Add("gender", "menstrual-cycle fields are only accepted when gender is Female", r.Gender)
	}
	if r.DurationOfPeriods != nil && !positiveFinite(*r.DurationOfPeriods) {
		errs.Add("duration_of_periods", "must be a positive number", *r.DurationOfPeriods)
	}
	if r.SeverityOfPeriods != nil && !health.ValidSeverity(*r.SeverityOfPeriods) {
		errs.Add("severity_of_periods", "must be one of Light, Moderate, Heavy", *r.SeverityOfPeriods)
	}

	if _, err := r.LabInput().LabValues(); err != nil {
		var verr *health.ValidationError
		if errors.As(err, &verr) {
			errs = append(errs, verr.Fields...)
		}
	}

	return Result{Errors: errs}
}

func checkScore(errs *health.FieldErrors, field string, v int) {
	if v < 1 || v > 10 {
		errs.Add(field, "must be between 1 and 10", v)
	}
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
