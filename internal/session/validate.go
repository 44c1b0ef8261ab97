package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under ~/.parley/sessions and show
// up as a structured log field, so they stay lowercase and filesystem-safe.
var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names that cannot serve as a session directory.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 characters of [a-z0-9_-]", name)
	}
	return nil
}
