// AngelaMos | 2026
// validation_test.go

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegistration_Valid(t *testing.T) {
	violations := ValidateRegistration(
		"trader@example.com",
		"trader_01",
		"Str0ngPass",
	)
	assert.Empty(t, violations)
}

func TestValidateRegistration_CollectsAllViolations(t *testing.T) {
	violations := ValidateRegistration("not-an-email", "x!", "weak")

	// one bad email, one short username, one bad username charset,
	// and three password rules
	assert.Len(t, violations, 6)
}

func TestValidateRegistration_BadEmail(t *testing.T) {
	cases := []string{"", "plain", "no@tld", "two@@example.com", "a b@c.de"}
	for _, email := range cases {
		violations := ValidateRegistration(email, "trader_01", "Str0ngPass")
		assert.NotEmpty(t, violations, "email %q should be rejected", email)
	}
}

func TestValidateRegistration_UsernameBounds(t *testing.T) {
	violations := ValidateRegistration("t@example.com", "ab", "Str0ngPass")
	assert.Len(t, violations, 1)

	long := make([]byte, 31)
	for i := range long {
		long[i] = 'a'
	}
	violations = ValidateRegistration("t@example.com", string(long), "Str0ngPass")
	assert.Len(t, violations, 1)
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		violations int
	}{
		{"strong", "Str0ngPass", 0},
		{"too short but mixed", "Ab1", 1},
		{"no upper", "str0ngpass", 1},
		{"no lower", "STR0NGPASS", 1},
		{"no digit", "StrongPass", 1},
		{"empty", "", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := ValidatePasswordStrength(tt.password)
			assert.Len(t, violations, tt.violations)
		})
	}
}
