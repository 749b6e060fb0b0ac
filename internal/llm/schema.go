package llm

// OutlineJSONSchema constrains the research-stage outline reply.
func OutlineJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "minLength": 1},
			"sections": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"heading": map[string]any{"type": "string", "minLength": 1},
						"points":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"heading"},
				},
			},
		},
		"required": []string{"title", "sections"},
	}
}

// MetaJSONSchema constrains the polish-stage SEO metadata reply.
// Lengths are loose here; SanitizeMeta enforces the display limits.
func MetaJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"meta_title":       map[string]any{"type": "string", "minLength": 1, "maxLength": 200},
			"meta_description": map[string]any{"type": "string", "minLength": 1, "maxLength": 500},
		},
		"required": []string{"meta_title", "meta_description"},
	}
}

// InsightJSONSchema constrains the keyword insight reply.
func InsightJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"related_keywords": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"maxItems": 50,
			},
			"search_intent": map[string]any{
				"type": "string",
				"enum": []string{"informational", "commercial", "transactional", "navigational"},
			},
		},
		"required": []string{"related_keywords"},
	}
}
