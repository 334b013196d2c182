package twofa

import (
	"errors"
	"strings"
	"unicode"
)

// CodeLength is the number of digits in a TOTP or emailed code.
const CodeLength = 6

var (
	ErrInvalidCode         = errors.New("enter the 6-digit code")
	ErrInvalidRecoveryCode = errors.New("enter a recovery code")
	ErrNoMethod            = errors.New("choose a verification method")

	// ErrMissingToken means the backend accepted the code but issued no
	// session token, which is not a completed login.
	ErrMissingToken = errors.New("verification succeeded but no access token was issued")
)

// SanitizeCode strips everything but digits and truncates to CodeLength.
// Stray characters are dropped rather than reported as errors.
func SanitizeCode(in string) string {
	var b strings.Builder
	for _, r := range in {
		if b.Len() == CodeLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCode reports whether code is exactly CodeLength ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// SanitizeRecoveryCode keeps letters, digits and dashes, upper-cased.
func SanitizeRecoveryCode(in string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(in) {
		switch {
		case r == '-':
			b.WriteRune(r)
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ValidRecoveryCode accepts any non-empty code with at least one
// alphanumeric character; the backend owns the exact format.
func ValidRecoveryCode(code string) bool {
	return strings.Trim(code, "-") != ""
}
