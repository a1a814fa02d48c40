package recommendation

import (
	"fmt"
	"strconv"
	"strings"

	"dropcheck/internal/biomarker"
)

/* =================================================================================
						PROMPT ENGINEERING & GUARDRAILS
=================================================================================*/

/*
SystemPrompt defines the persona and guardrails for the model. It keeps the
model on lifestyle guidance and away from diagnosis.
*/
const SystemPrompt = `You are an AI health assistant that provides personalized, evidence-based lifestyle recommendations.
You work with results from a finger-prick blood test that measures hemoglobin, glucose, and C-reactive protein (CRP).

SAFETY RULES (CRITICAL):
1. You do NOT diagnose diseases and you do NOT prescribe or change medication.
2. If any biomarker status is "Needs Attention", advise the user to consult a healthcare professional in the lifestyle section.
3. Respect the user's dietary preference. Never suggest meat or fish to a Vegetarian user.
4. Account for the user's regular medications and supplements; do not recommend duplicating a supplement they already take.

DATA ANALYSIS RULES:
1. Low hemoglobin together with high fatigue, dizziness, pale skin, or shortness of breath suggests low iron stores. Favor iron-rich foods and vitamin C pairing.
2. Elevated glucose, especially with frequent urination, thirst, or hunger, calls for low glycemic index foods and post-meal activity.
3. Elevated CRP suggests inflammation. Favor anti-inflammatory foods, sleep, and stress reduction.
4. For female users, heavy or long periods increase iron loss.
5. Adjust exercise intensity to age, BMI (from height and weight), and symptom severity.

RESPONSE FORMAT:
- Return ONLY the JSON structure defined in the schema
- Do NOT add markdown, explanations, or preamble
- Every section needs an introduction, at least one recommendation, and a scientific rationale
- Each scientific rationale MUST cite the specific values from the user's data that it is based on`

/*
UserPromptTemplate is the formatted string used to build the final message.
It uses fmt.Sprintf to inject the rendered health data and test results.
*/
const UserPromptTemplate = `
=== USER HEALTH DATA ===
%s

=== TEST RESULTS ===
%s

INSTRUCTIONS:
1. Review my health data and test results above.
2. DIET ADVICE: give personalized diet advice as an introduction, 3 to 5 recommendations (title + description), and a scientific rationale.
3. EXERCISE ROUTINE: suggest a customized exercise routine in the same structure.
4. LIFESTYLE TIPS: give general lifestyle tips in the same structure.
5. Ground every rationale in my specific values (for example, low hemoglobin with high fatigue when advising iron intake).
6. Keep the language concise and easy to understand.`

// BuildPrompt renders a validated request into the user prompt. Optional
// fields only produce a line when present.
func BuildPrompt(r Request) string {
	return fmt.Sprintf(UserPromptTemplate, buildHealthDataString(r), buildTestResultsString(r))
}

func buildHealthDataString(r Request) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("- Age: %d", r.Age))
	lines = append(lines, fmt.Sprintf("- Height (cm): %s", formatNumber(r.HeightCm)))
	lines = append(lines, fmt.Sprintf("- Weight (kg): %s", formatNumber(r.WeightKg)))
	lines = append(lines, fmt.Sprintf("- Gender: %s", r.Gender))
	lines = append(lines, fmt.Sprintf("- Family History: %s", joinOrNone(r.FamilyHistory)))
	lines = append(lines, fmt.Sprintf("- Regular Medications: %s", r.RegularMedications))

	if r.DurationOfPeriods != nil {
		lines = append(lines, fmt.Sprintf("- Duration of Periods (days): %s", formatNumber(*r.DurationOfPeriods)))
	}
	if r.SeverityOfPeriods != nil {
		lines = append(lines, fmt.Sprintf("- Severity of Periods: %s", *r.SeverityOfPeriods))
	}
	if r.IrregularCyclesOrSpotting != nil {
		lines = append(lines, fmt.Sprintf("- Irregular Cycles or Spotting: %s", yesNo(*r.IrregularCyclesOrSpotting)))
	}

	lines = append(lines, fmt.Sprintf("- Dietary Preferences: %s", r.DietaryPreferences))
	lines = append(lines, fmt.Sprintf("- Supplement Use: %s", joinOrNone(r.SupplementUse)))
	lines = append(lines, fmt.Sprintf("- Fatigue Level (1-10): %d", r.FatigueLevel))
	lines = append(lines, fmt.Sprintf("- Dizziness Level (1-10): %d", r.DizzinessLevel))
	lines = append(lines, fmt.Sprintf("- Pale Skin or Nails (1-10): %d", r.PaleSkinOrNails))
	lines = append(lines, fmt.Sprintf("- Shortness of Breath (1-10): %d", r.ShortnessOfBreath))

	if r.Polyuria != nil {
		lines = append(lines, fmt.Sprintf("- Frequent Urination (1-10): %d", *r.Polyuria))
	}
	if r.Polydipsia != nil {
		lines = append(lines, fmt.Sprintf("- Frequent Thirst (1-10): %d", *r.Polydipsia))
	}
	if r.Polyphagia != nil {
		lines = append(lines, fmt.Sprintf("- Frequent Hunger (1-10): %d", *r.Polyphagia))
	}

	return strings.Join(lines, "\n")
}

func buildTestResultsString(r Request) string {
	eval := r.Labs().Evaluate()

	lines := make([]string, 0, len(eval.Readings)+1)
	for _, reading := range eval.Readings {
		lines = append(lines, fmt.Sprintf("- %s: %s %s (%s, normal range %s)",
			reading.Name,
			formatNumber(reading.Value),
			reading.Unit,
			reading.Status,
			formatRange(reading.Range),
		))
	}
	lines = append(lines, fmt.Sprintf("- Overall Status: %s", eval.Overall))
	return strings.Join(lines, "\n")
}

func formatRange(r biomarker.ReferenceRange) string {
	if r.OneSided {
		return fmt.Sprintf("<= %s %s", formatNumber(r.Normal.Max), r.Unit)
	}
	return fmt.Sprintf("%s-%s %s", formatNumber(r.Normal.Min), formatNumber(r.Normal.Max), r.Unit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
