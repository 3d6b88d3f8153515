package config

import "maps"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely applied without a restart are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// TokensChanged is set when the static auth token map changed. Token
	// rotation applies only in static-token mode; a changed hmac_secret
	// needs a restart.
	TokensChanged bool
	NewTokens     map[string]string
}

// Empty reports whether d records no applicable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.TokensChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}

	if !maps.Equal(old.Auth.Tokens, new.Auth.Tokens) {
		d.TokensChanged = true
		d.NewTokens = new.Auth.Tokens
	}

	return d
}
