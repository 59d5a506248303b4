package browser

import (
	"form-agent/internal/entity"
	"strings"
)

// DecodeFields converts the raw result of FieldsScript into descriptors.
// Items that are not objects are skipped; null and missing attributes decode
// to empty strings.
func DecodeFields(raw interface{}) []entity.FieldDescriptor {
	items, _ := raw.([]interface{})
	fields := make([]entity.FieldDescriptor, 0, len(items))

	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		tag := strings.ToLower(getString(m, "tagName"))
		typ := getString(m, "type")
		if typ == "" {
			typ = tag
		}

		fields = append(fields, entity.FieldDescriptor{
			Name:        getString(m, "name"),
			ID:          getString(m, "id"),
			Placeholder: getString(m, "placeholder"),
			Type:        typ,
			Value:       getString(m, "value"),
			TagName:     tag,
			Visible:     getBool(m, "visible"),
			Required:    getBool(m, "required"),
			Label:       strings.TrimSpace(getString(m, "label")),
			ClassName:   getString(m, "className"),
		})
	}

	return fields
}

// DecodeButtons converts the raw result of ButtonsScript into descriptors.
func DecodeButtons(raw interface{}) []entity.ButtonDescriptor {
	items, _ := raw.([]interface{})
	buttons := make([]entity.ButtonDescriptor, 0, len(items))

	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		buttons = append(buttons, entity.ButtonDescriptor{
			Text:      strings.TrimSpace(getString(m, "text")),
			Selector:  getString(m, "selector"),
			Visible:   getBool(m, "visible"),
			ClassName: getString(m, "className"),
		})
	}

	return buttons
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}

	return false
}
