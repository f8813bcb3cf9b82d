package session

import "os"

const (
	DefaultProfileName = "main"
	// EnvProfile selects the profile when no flag is given.
	EnvProfile = "CHATSYNC_PROFILE"
)

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. $CHATSYNC_PROFILE
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if v := os.Getenv(EnvProfile); v != "" {
		return v
	}
	return DefaultProfileName
}
