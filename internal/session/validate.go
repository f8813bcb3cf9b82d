package session

import (
	"fmt"
	"regexp"
)

// Names become directory names and CLI arguments, so they may not start with a dash.
var nameRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: lowercase letters, digits, '-' and '_' only, at most 64, not starting with '-' or '_'", name)
	}
	return nil
}
