package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// CountryCode is an upper-case ISO 3166-1 alpha-2 code.
type CountryCode string

func ParseCountryCode(raw string) (CountryCode, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return "", newFieldError("country", "is required")
	}
	if len(value) != 2 && len(value) != 3 {
		return "", newFieldError("country", "must be an ISO 3166-1 alpha-2 or alpha-3 code")
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			return "", newFieldError("country", "must be an ISO 3166-1 alpha-2 or alpha-3 code")
		}
	}

	region, err := language.ParseRegion(value)
	if err != nil || !region.IsCountry() {
		return "", newFieldError("country", "unknown ISO country code "+value)
	}
	return CountryCode(region.String()), nil
}

func (c CountryCode) String() string { return string(c) }
