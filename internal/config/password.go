package config

import (
	"fmt"
	"os"
)

// DefaultPasswordEnv is read when a target takes its password from the
// environment without naming a variable.
const DefaultPasswordEnv = "TIMSYNC_PASSWORD"

// ResolvePassword returns the password of t according to its source.
// Supported sources: "config" (the password value, the default) and "env".
func ResolvePassword(t Target) (string, error) {
	switch t.PasswordSource {
	case "", "config":
		if t.Password == "" {
			return "", fmt.Errorf("password_source is 'config' but no password value provided")
		}
		return t.Password, nil
	case "env":
		envVar := t.PasswordEnv
		if envVar == "" {
			envVar = DefaultPasswordEnv
		}
		return resolveFromEnv(envVar)
	default:
		return "", fmt.Errorf("unknown password_source: %q", t.PasswordSource)
	}
}

func resolveFromEnv(envVar string) (string, error) {
	val := os.Getenv(envVar)
	if val == "" {
		return "", fmt.Errorf("environment variable %s is not set", envVar)
	}
	return val, nil
}
