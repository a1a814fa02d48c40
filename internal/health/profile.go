package health

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidProfile = errors.New("invalid profile")

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"

	DietVegetarian    = "Vegetarian"
	DietNonVegetarian = "Non-vegetarian"

	SeverityLight    = "Light"
	SeverityModerate = "Moderate"
	SeverityHeavy    = "Heavy"

	UnitCm     = "cm"
	UnitInches = "in"
	UnitKg     = "kg"
	UnitLbs    = "lbs"
)

const (
	cmPerInch = 2.54
	kgPerLb   = 0.453592
)

// Supplements offered on the profile form.
var KnownSupplements = []string{"iron", "vitamin-b12", "folic-acid"}

// UserProfile holds the demographic and lifestyle answers a user submits
// before testing. It is replaced wholesale, never patched.
type UserProfile struct {
	Age        int     `json:"age"`
	Height     float64 `json:"height"`
	HeightUnit string  `json:"height_unit"`
	Weight     float64 `json:"weight"`
	WeightUnit string  `json:"weight_unit"`
	Gender     string  `json:"gender"`

	FamilyHistory        bool   `json:"family_history"`
	FamilyHistoryDetails string `json:"family_history_details,omitempty"`
	RegularMedications   string `json:"regular_medications,omitempty"`

	DurationOfPeriods         *float64 `json:"duration_of_periods,omitempty"`
	SeverityOfPeriods         *string  `json:"severity_of_periods,omitempty"`
	IrregularCyclesOrSpotting bool     `json:"irregular_cycles_or_spotting"`

	DietaryPreferences string   `json:"dietary_preferences"`
	SupplementUse      []string `json:"supplement_use"`

	FatigueLevel      int `json:"fatigue_level"`
	DizzinessLevel    int `json:"dizziness_level"`
	PaleSkinOrNails   int `json:"pale_skin_or_nails"`
	ShortnessOfBreath int `json:"shortness_of_breath"`
	Polyuria          int `json:"polyuria"`
	Polydipsia        int `json:"polydipsia"`
	Polyphagia        int `json:"polyphagia"`

	MedicalHistory string `json:"medical_history,omitempty"`
}

// Normalize applies form defaults and converts height and weight to cm and kg.
func (p UserProfile) Normalize() UserProfile {
	switch p.HeightUnit {
	case UnitInches:
		p.Height = roundTo(p.Height*cmPerInch, 2)
		p.HeightUnit = UnitCm
	case "":
		p.HeightUnit = UnitCm
	}
	switch p.WeightUnit {
	case UnitLbs:
		p.Weight = roundTo(p.Weight*kgPerLb, 2)
		p.WeightUnit = UnitKg
	case "":
		p.WeightUnit = UnitKg
	}

	defaultScore(&p.FatigueLevel, 5)
	defaultScore(&p.DizzinessLevel, 5)
	defaultScore(&p.PaleSkinOrNails, 5)
	defaultScore(&p.ShortnessOfBreath, 5)
	defaultScore(&p.Polyuria, 1)
	defaultScore(&p.Polydipsia, 1)
	defaultScore(&p.Polyphagia, 1)

	if p.SupplementUse == nil {
		p.SupplementUse = []string{}
	}
	if p.SeverityOfPeriods != nil && *p.SeverityOfPeriods == "" {
		p.SeverityOfPeriods = nil
	}
	p.RegularMedications = strings.TrimSpace(p.RegularMedications)
	p.MedicalHistory = strings.TrimSpace(p.MedicalHistory)
	return p
}

// FamilyHistoryList splits the free-text family history into entries.
func (p UserProfile) FamilyHistoryList() []string {
	out := []string{}
	if !p.FamilyHistory {
		return out
	}
	for _, part := range strings.Split(p.FamilyHistoryDetails, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the profile and returns nil or a *ValidationError of kind
// ErrInvalidProfile.
func (p UserProfile) Validate() error {
	var errs FieldErrors

	if p.Age < 1 || p.Age > 120 {
		errs.Add("age", "must be between 1 and 120", p.Age)
	}
	if !(p.Height > 0) || math.IsInf(p.Height, 0) {
		errs.Add("height", "is required", p.Height)
	}
	if p.HeightUnit != UnitCm && p.HeightUnit != UnitInches {
		errs.Add("height_unit", "must be cm or in", p.HeightUnit)
	}
	if !(p.Weight > 0) || math.IsInf(p.Weight, 0) {
		errs.Add("weight", "is required", p.Weight)
	}
	if p.WeightUnit != UnitKg && p.WeightUnit != UnitLbs {
		errs.Add("weight_unit", "must be kg or lbs", p.WeightUnit)
	}
	if !ValidGender(p.Gender) {
		errs.Add("gender", "must be one of Male, Female, Other", p.Gender)
	}
	if !ValidDiet(p.DietaryPreferences) {
		errs.Add("dietary_preferences", "must be Vegetarian or Non-vegetarian", p.DietaryPreferences)
	}
	if p.SeverityOfPeriods != nil && !ValidSeverity(*p.SeverityOfPeriods) {
		errs.Add("severity_of_periods", "must be one of Light, Moderate, Heavy", *p.SeverityOfPeriods)
	}
	if p.DurationOfPeriods != nil && !(*p.DurationOfPeriods > 0) {
		errs.Add("duration_of_periods", "must be positive", *p.DurationOfPeriods)
	}

	scores := []struct {
		field string
		value int
	}{
		{"fatigue_level", p.FatigueLevel},
		{"dizziness_level", p.DizzinessLevel},
		{"pale_skin_or_nails", p.PaleSkinOrNails},
		{"shortness_of_breath", p.ShortnessOfBreath},
		{"polyuria", p.Polyuria},
		{"polydipsia", p.Polydipsia},
		{"polyphagia", p.Polyphagia},
	}
	for _, s := range scores {
		if s.value < 1 || s.value > 10 {
			errs.Add(s.field, "must be between 1 and 10", s.value)
		}
	}

	return errs.As(ErrInvalidProfile)
}

func ValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

func ValidDiet(d string) bool {
	return d == DietVegetarian || d == DietNonVegetarian
}

func ValidSeverity(s string) bool {
	return s == SeverityLight || s == SeverityModerate || s == SeverityHeavy
}

func defaultScore(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// FieldErrors collects validation failures.
type FieldErrors []FieldError

func (fe *FieldErrors) Add(field, message string, value interface{}) {
	*fe = append(*fe, FieldError{Field: field, Message: message, Value: value})
}

// As wraps the collected failures into a ValidationError of the given kind,
// or returns nil when there are none.
func (fe FieldErrors) As(kind error) error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Kind: kind, Fields: fe}
}

// ValidationError reports every rejected field. errors.Is matches Kind.
type ValidationError struct {
	Kind   error
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}
