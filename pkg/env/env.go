package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Used for the handful of ad-hoc overrides (PORT, LOG_FORMAT) that live
// outside the CARTSYNC_ config surface.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
