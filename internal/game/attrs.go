package game

import "strconv"

// Attribute readers tolerant of the loose typing that comes off the host's
// JSON payloads: numbers arrive as float64, booleans sometimes as strings.

func attrString(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrInt(attrs map[string]any, key string) int {
	if attrs == nil {
		return 0
	}
	switch v := attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		return parseInt(v)
	}
	return 0
}

func attrBool(attrs map[string]any, key string) bool {
	if attrs == nil {
		return false
	}
	switch v := attrs[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "on"
	}
	return false
}

func attrMap(attrs map[string]any, key string) map[string]any {
	if attrs == nil {
		return nil
	}
	if v, ok := attrs[key].(map[string]any); ok {
		return v
	}
	return nil
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
