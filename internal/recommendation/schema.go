package recommendation

import "dropcheck/internal/geminiservice"

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	This is the core structure that tells Gemini how to format its JSON response
=================================================================================*/

func sectionSchema(description string) *geminiservice.Schema {
	return &geminiservice.Schema{
		Type:        "OBJECT",
		Description: description,
		Properties: map[string]*geminiservice.Schema{
			"introduction": {
				Type:        "STRING",
				Description: "One or two sentences introducing this section for the user.",
			},
			"recommendations": {
				Type:        "ARRAY",
				Description: "Ordered, actionable recommendations. At least one.",
				MinItems:    "1",
				Items: &geminiservice.Schema{
					Type: "OBJECT",
					Properties: map[string]*geminiservice.Schema{
						"title": {
							Type:        "STRING",
							Description: "Short headline for the recommendation.",
						},
						"description": {
							Type:        "STRING",
							Description: "One to three sentences explaining what to do.",
						},
					},
					PropertyOrdering: []string{"title", "description"},
					Required:         []string{"title", "description"},
				},
			},
			"scientific_rationale": {
				Type:        "STRING",
				Description: "Why these recommendations fit this user, citing their specific test values and symptoms.",
			},
		},
		PropertyOrdering: []string{"introduction", "recommendations", "scientific_rationale"},
		Required:         []string{"introduction", "recommendations", "scientific_rationale"},
	}
}

/*
BundleSchema describes the exact JSON structure the model MUST output.
This schema is passed to the Gemini configuration to enforce strict validation.
*/
var BundleSchema = &geminiservice.Schema{
	Type: "OBJECT",
	Properties: map[string]*geminiservice.Schema{
		"diet_advice":      sectionSchema("Personalized diet advice based on the user data and test results."),
		"exercise_routine": sectionSchema("Customized exercise routine suggestions based on the user profile."),
		"lifestyle_tips":   sectionSchema("General lifestyle tips for improving health."),
	},
	PropertyOrdering: []string{"diet_advice", "exercise_routine", "lifestyle_tips"},
	Required:         []string{"diet_advice", "exercise_routine", "lifestyle_tips"},
}
