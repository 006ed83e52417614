package common

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyInviteCode = errors.New("invite code cannot be empty")
	nonCodeChars       = regexp.MustCompile(`[^A-Z0-9]+`)
)

// NormalizeInviteCode canonicalizes a code as typed by a user, so
// " safe ab12c" and "SAFE-AB12C" resolve to the same partner.
func NormalizeInviteCode(input string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(input))
	code := strings.Trim(nonCodeChars.ReplaceAllString(upper, "-"), "-")
	if code == "" {
		return "", ErrEmptyInviteCode
	}
	return code, nil
}
