package domain

import (
	"strings"
)

// ClassificationCode is an HS tariff classification stored as bare digits.
type ClassificationCode string

const (
	minCodeDigits = 4
	maxCodeDigits = 10
)

// ParseClassificationCode accepts dotted or spaced input such as "8471.30.00".
func ParseClassificationCode(raw string) (ClassificationCode, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '-':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", newFieldError("hs_code", "is required")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", newFieldError("hs_code", "must contain digits only")
		}
	}
	if len(cleaned) < minCodeDigits || len(cleaned) > maxCodeDigits {
		return "", newFieldError("hs_code", "must have between 4 and 10 digits")
	}
	return ClassificationCode(cleaned), nil
}

func (c ClassificationCode) String() string { return string(c) }

func (c ClassificationCode) Chapter() string {
	if len(c) < 2 {
		return string(c)
	}
	return string(c[:2])
}

func (c ClassificationCode) Heading() string {
	if len(c) < 4 {
		return string(c)
	}
	return string(c[:4])
}

// Lineage returns the code followed by its 8, 6 and 4 digit ancestors, most specific first.
func (c ClassificationCode) Lineage() []ClassificationCode {
	out := []ClassificationCode{c}
	for _, n := range []int{8, 6, 4} {
		if len(c) > n {
			out = append(out, c[:n])
		}
	}
	return out
}

// Specificity is the number of digits, used to rank lineage matches.
func (c ClassificationCode) Specificity() int { return len(c) }

// Dotted renders 84713000 as 8471.30.00.
func (c ClassificationCode) Dotted() string {
	s := string(c)
	if len(s) <= 4 {
		return s
	}
	var b strings.Builder
	b.WriteString(s[:4])
	for i := 4; i < len(s); i += 2 {
		end := i + 2
		if end > len(s) {
			end = len(s)
		}
		b.WriteByte('.')
		b.WriteString(s[i:end])
	}
	return b.String()
}
