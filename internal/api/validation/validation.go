package validation

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{3,64}$`)
	phoneCharset  = regexp.MustCompile(`^[0-9+()\-.\s]+$`)
)

const (
	MaxNameLength  = 200
	MaxSiteLength  = 100
	MaxNoteLength  = 5000
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// IsValidEmail checks if the email format is valid
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidPhone accepts common US formatting with 7 to 15 digits.
func IsValidPhone(phone string) bool {
	if !phoneCharset.MatchString(phone) {
		return false
	}
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// IsValidUsername allows letters, digits, dot, dash and underscore.
func IsValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// IsValidUUID checks if the string is a valid UUID
func IsValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IsValidSite rejects blank names, control characters and overlong names.
func IsValidSite(site string) bool {
	site = strings.TrimSpace(site)
	if site == "" || len(site) > MaxSiteLength {
		return false
	}
	for _, r := range site {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// IsValidDate accepts YYYY-MM-DD or RFC 3339.
func IsValidDate(s string) bool {
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// IsValidPassword checks length only; complexity is left to the account owner.
func IsValidPassword(password string) (bool, string) {
	if len(password) < MinPasswordLen {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > MaxPasswordLen {
		return false, "Password must be at most 128 characters"
	}
	return true, ""
}

// SanitizeString trims whitespace and drops control characters except newlines and tabs.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// EscapeHTML escapes HTML special characters
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// TruncateString truncates a string to maxLen runes.
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// SanitizeList cleans each entry and drops empties and duplicates.
func SanitizeList(items []string) []string {
	if items == nil {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = SanitizeString(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
