package api

import "encoding/json"

// SettingsField extracts a string field from a parser config's settings JSON.
func SettingsField(settingsJSON, field, fallback string) string {
	if settingsJSON == "" {
		return fallback
	}
	var settings map[string]any
	if err := json.Unmarshal([]byte(settingsJSON), &settings); err != nil {
		return fallback
	}
	value, ok := settings[field].(string)
	if !ok || value == "" {
		return fallback
	}
	return value
}
