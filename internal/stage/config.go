package stage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Config is the free-form configuration attached to a node. Values come from
// JSON (float64) or YAML (int) decoding, so accessors normalize numeric kinds.
type Config map[string]any

// String returns the trimmed string at key or def when absent or empty.
func (c Config) String(key, def string) string {
	raw, ok := c[key]
	if !ok || raw == nil {
		return def
	}
	value := strings.TrimSpace(fmt.Sprint(raw))
	if value == "" {
		return def
	}
	return value
}

// Bool returns the boolean at key. String values "true"/"false" are accepted.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return def
}

// Int returns the integer at key and whether it held a usable number.
func (c Config) Int(key string) (int, bool) {
	switch v := c[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
