// Package env reads process environment variables with fallbacks.
package env

import "os"

// Get returns the named environment variable, or fallback when it is
// unset or empty.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
