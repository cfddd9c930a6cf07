package report

import (
	"strconv"
	"strings"

	"bugboard/pkg/discord"
)

// FieldValue returns the value of the first field whose name matches exactly.
// Field names are produced by the in-game reporter and are case-sensitive.
func FieldValue(fields []discord.EmbedField, name string) (string, bool) {
	for _, field := range fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// optionalField returns a pointer to the field value, or nil when the field is
// missing or empty. Stored telemetry keeps absent distinct from empty.
func optionalField(fields []discord.EmbedField, name string) *string {
	value, ok := FieldValue(fields, name)
	if !ok || value == "" {
		return nil
	}
	return &value
}

// floatField parses the named field as a float. Missing or malformed values
// yield nil rather than a stored zero.
func floatField(fields []discord.EmbedField, name string) *float64 {
	raw, ok := FieldValue(fields, name)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &parsed
}
