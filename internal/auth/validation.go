// AngelaMos | 2026
// validation.go

package auth

import (
	"regexp"
	"unicode"
)

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ValidateRegistration collects every violated rule so a client can fix
// the whole form in one round trip.
func ValidateRegistration(email, username, password string) []string {
	var violations []string

	if !emailPattern.MatchString(email) {
		violations = append(violations, "email must be a valid email address")
	}

	if len(username) < 3 || len(username) > 30 {
		violations = append(
			violations,
			"username must be between 3 and 30 characters",
		)
	}
	if username != "" && !usernamePattern.MatchString(username) {
		violations = append(
			violations,
			"username may only contain letters, digits, underscore and hyphen",
		)
	}

	violations = append(violations, ValidatePasswordStrength(password)...)

	return violations
}

func ValidatePasswordStrength(password string) []string {
	var violations []string

	if len(password) < 8 {
		violations = append(
			violations,
			"password must be at least 8 characters",
		)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		violations = append(
			violations,
			"password must contain an uppercase letter",
		)
	}
	if !hasLower {
		violations = append(
			violations,
			"password must contain a lowercase letter",
		)
	}
	if !hasDigit {
		violations = append(violations, "password must contain a digit")
	}

	return violations
}
