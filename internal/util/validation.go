package util

import (
	"regexp"
)

var (
	regionCodeRegex  = regexp.MustCompile(`^[A-Za-z]{2}$`)
	callingCodeRegex = regexp.MustCompile(`^\+?[0-9]{1,3}$`)
)

// IsRegionCode reports whether s looks like an ISO 3166-1 alpha-2 region, e.g. "KE".
func IsRegionCode(s string) bool {
	return regionCodeRegex.MatchString(s)
}

// IsCallingCode reports whether s looks like an international calling code, e.g. "254" or "+1".
func IsCallingCode(s string) bool {
	return callingCodeRegex.MatchString(s)
}
