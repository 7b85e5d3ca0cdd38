package pipeline

import (
	"regexp"
	"strings"
)

var (
	capitalizedWord = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerThenUpper  = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// Normalize converts a vendor state identifier into a dotted snake_case
// metric name: "core:TemperatureState" becomes "core.temperature_state".
// Applying it to its own output is a no-op.
func Normalize(raw string) string {
	name := strings.ReplaceAll(raw, ":", ".")
	name = capitalizedWord.ReplaceAllString(name, "${1}_${2}")
	name = lowerThenUpper.ReplaceAllString(name, "${1}_${2}")
	name = strings.ToLower(name)

	for strings.Contains(name, "._") {
		name = strings.ReplaceAll(name, "._", ".")
	}

	if !strings.Contains(name, ".") {
		return name
	}

	segments := strings.Split(name, ".")
	kept := segments[:0]
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ".")
}

// Join builds the full metric name under prefix. An empty prefix leaves
// name untouched.
func Join(prefix, name string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}
