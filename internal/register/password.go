package register

import "strings"

// passwordSpecials is the set of special characters a password may (and must)
// contain. Matches the policy enforced at registration time on the server.
const passwordSpecials = "@$!%*?&"

// PasswordReport carries the per-requirement outcome of a policy check, one
// flag per rule so callers can surface exactly which rules are unmet.
type PasswordReport struct {
	MinLength   bool
	Uppercase   bool
	Lowercase   bool
	Digit       bool
	SpecialChar bool
}

// Satisfied reports whether every requirement is met.
func (r PasswordReport) Satisfied() bool {
	return r.MinLength && r.Uppercase && r.Lowercase && r.Digit && r.SpecialChar
}

// Unmet lists the human-readable names of failed requirements in a stable
// order.
func (r PasswordReport) Unmet() []string {
	var out []string
	if !r.MinLength {
		out = append(out, "at least 8 characters")
	}
	if !r.Uppercase {
		out = append(out, "an uppercase letter")
	}
	if !r.Lowercase {
		out = append(out, "a lowercase letter")
	}
	if !r.Digit {
		out = append(out, "a number")
	}
	if !r.SpecialChar {
		out = append(out, "a special character")
	}
	return out
}

// CheckPassword evaluates the password policy rule by rule. It is meant to be
// re-run on every keystroke, so it allocates nothing on the happy path.
func CheckPassword(password string) PasswordReport {
	var r PasswordReport
	r.MinLength = len(password) >= 8
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			r.Uppercase = true
		case c >= 'a' && c <= 'z':
			r.Lowercase = true
		case c >= '0' && c <= '9':
			r.Digit = true
		case strings.ContainsRune(passwordSpecials, c):
			r.SpecialChar = true
		}
	}
	return r
}
