package geminiservice

// Schema defines the structure for "Controlled Generation" (Structured Output).
// It maps to the Schema object of the Gemini REST API.
type Schema struct {
	// Type defines the data type (e.g., "OBJECT", "ARRAY", "STRING", "INTEGER").
	Type string `json:"type"`

	// Format specifies data format, primarily used for "enum" validation.
	Format string `json:"format,omitempty"`

	// Description explains the field's purpose to the model.
	Description string `json:"description,omitempty"`

	// Properties maps field names to their child schemas (used when Type is "OBJECT").
	Properties map[string]*Schema `json:"properties,omitempty"`

	// PropertyOrdering fixes the order in which the model emits properties.
	PropertyOrdering []string `json:"propertyOrdering,omitempty"`

	// Items defines the schema for elements within an array (used when Type is "ARRAY").
	Items *Schema `json:"items,omitempty"`

	// MinItems is the smallest accepted array length.
	MinItems string `json:"minItems,omitempty"`

	// Required lists the field names that the model MUST include in the response.
	Required []string `json:"required,omitempty"`

	// Enum lists valid specific string values for fields with restricted options.
	Enum []string `json:"enum,omitempty"`
}
