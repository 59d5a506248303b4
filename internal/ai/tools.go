package ai

import "form-agent/internal/entity"

func roleNames() []string {
	names := make([]string, len(entity.Roles))
	for i, r := range entity.Roles {
		names[i] = string(r)
	}

	return names
}

func createTools() []claudeTool {
	return []claudeTool{
		{
			Name:        string(entity.ActionNavigate),
			Description: "Navigates to the specified URL.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url": map[string]interface{}{
						"type":        "string",
						"description": "The URL to open in the browser",
					},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        string(entity.ActionFill),
			Description: "Intelligently fill form fields by matching labels, placeholders, or field types",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fieldType": map[string]interface{}{
						"type":        "string",
						"enum":        roleNames(),
						"description": "Type of field to fill",
					},
					"value": map[string]interface{}{
						"type":        "string",
						"description": "Value to fill",
					},
					"customSelector": map[string]interface{}{
						"type":        []string{"string", "null"},
						"description": "Custom selector if fieldType is 'custom'",
					},
				},
				"required": []string{"fieldType", "value"},
			},
		},
		{
			Name:        string(entity.ActionClick),
			Description: "Click button elements by text content",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"buttonText": map[string]interface{}{
						"type":        "string",
						"description": "Text content of the button to click",
					},
				},
				"required": []string{"buttonText"},
			},
		},
		{
			Name:        string(entity.ActionValidate),
			Description: "Validate that a field contains expected value",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"fieldType": map[string]interface{}{
						"type": "string",
						"enum": roleNames(),
					},
					"expectedValue": map[string]interface{}{
						"type": "string",
					},
					"customSelector": map[string]interface{}{
						"type": []string{"string", "null"},
					},
				},
				"required": []string{"fieldType", "expectedValue"},
			},
		},
		{
			Name:        string(entity.ActionScroll),
			Description: "Scroll the page to see more content",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"direction": map[string]interface{}{
						"type":        "string",
						"enum":        []string{string(entity.ScrollUp), string(entity.ScrollDown)},
						"description": "Direction to scroll",
					},
					"amount": map[string]interface{}{
						"type":        "number",
						"default":     500,
						"description": "Pixels to scroll",
					},
				},
				"required": []string{"direction"},
			},
		},
		{
			Name:        string(entity.ActionScreenshot),
			Description: "Save screenshots to disk with strict limits.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reason": map[string]interface{}{
						"type":        "string",
						"default":     "debug",
						"description": "Reason for taking screenshot",
					},
				},
			},
		},
		{
			Name:        string(entity.ActionAnalyze),
			Description: "Analyze page structure and return form fields and buttons information",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        string(entity.ActionComplete),
			Description: "Finish the task and report the outcome",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"result": map[string]interface{}{
						"type": "string",
					},
				},
				"required": []string{"result"},
			},
		},
	}
}
