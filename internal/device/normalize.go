package device

import (
	"regexp"
	"strings"
)

const (
	keySensor   = "SENSOR"
	keyActuator = "ACTUATOR"
	suffixLen   = 4
)

var (
	// canonicalKey matches identifiers already in key form.
	canonicalKey = regexp.MustCompile(`^(SENSOR|ACTUATOR)-.{1,4}$`)

	hexSuffix = regexp.MustCompile(`[0-9A-F]{4}$`)
)

// displayPrefixes are stripped from the raw identifier to form the name.
var displayPrefixes = []string{"ESP32-IOT-", "ESP32S3-"}

// Normalize maps a raw identifier to its registry key.
//
// The identifier is uppercased. The class is ACTUATOR when the identifier
// contains "ACTUATOR", SENSOR otherwise. The suffix is the trailing four hex
// digits, or the last four characters when it does not end in hex.
// Identifiers already in key form are returned as is, so
// Normalize(Normalize(x)) == Normalize(x).
//
// An empty (or all-space) identifier yields "".
func Normalize(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "" {
		return ""
	}
	if canonicalKey.MatchString(upper) {
		return upper
	}

	class := keySensor
	if strings.Contains(upper, keyActuator) {
		class = keyActuator
	}

	suffix := hexSuffix.FindString(upper)
	if suffix == "" {
		runes := []rune(upper)
		if len(runes) > suffixLen {
			runes = runes[len(runes)-suffixLen:]
		}
		suffix = string(runes)
	}

	return class + "-" + suffix
}

// ClassOf returns the class encoded in a raw identifier.
func ClassOf(raw string) Class {
	if strings.Contains(strings.ToUpper(raw), keyActuator) {
		return ClassActuator
	}
	return ClassSensor
}

// DisplayName strips well-known firmware prefixes from a raw identifier.
func DisplayName(raw string) string {
	name := strings.TrimSpace(raw)
	for _, p := range displayPrefixes {
		name = strings.Replace(name, p, "", 1)
	}
	return name
}
