package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidFallbackProviders lists the LLM vendor names the translation fallback
// can be built with. Used by [Validate] to warn about unrecognised names.
var ValidFallbackProviders = []string{"openai", "anthropic", "gemini", "ollama", "mistral", "llamacpp"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Environment references ($VAR or ${VAR}) anywhere in the document are
// expanded before decoding; unset variables expand to the empty string.
// Unknown keys are rejected. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Listen
	if tls := cfg.Listen.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("listen.tls.cert_file and listen.tls.key_file must both be set"))
		}
	}
	if cfg.Listen.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("listen.max_upload_bytes %d is negative", cfg.Listen.MaxUploadBytes))
	}

	// Database
	if cfg.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}

	// Auth — exactly one verification mode.
	switch {
	case len(cfg.Auth.Tokens) > 0 && cfg.Auth.HMACSecret != "":
		errs = append(errs, errors.New("auth.tokens and auth.hmac_secret are mutually exclusive"))
	case len(cfg.Auth.Tokens) == 0 && cfg.Auth.HMACSecret == "":
		errs = append(errs, errors.New("auth requires either a static token map (auth.tokens) or a signing secret (auth.hmac_secret)"))
	}
	if _, ok := cfg.Auth.Tokens[""]; ok {
		errs = append(errs, errors.New("auth.tokens contains an empty token"))
	}
	for _, user := range cfg.Auth.Tokens {
		if user == "" {
			errs = append(errs, errors.New("auth.tokens has an entry with an empty user id"))
			break
		}
	}

	// Speech services
	checkService := func(path string, svc ServiceConfig) {
		if svc.Enabled && svc.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required when the service is enabled", path))
		}
		if svc.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout %s is negative", path, svc.Timeout))
		}
	}
	checkService("speech.whisper", cfg.Speech.Whisper)
	checkService("speech.tts", cfg.Speech.TTS)
	checkService("speech.translation", cfg.Speech.Translation)

	// Voice
	if cfg.Voice.Window < 0 {
		errs = append(errs, fmt.Errorf("voice.window %s is negative", cfg.Voice.Window))
	}
	if cfg.Voice.MaxBufferBytes < 0 {
		errs = append(errs, fmt.Errorf("voice.max_buffer_bytes %d is negative", cfg.Voice.MaxBufferBytes))
	}

	// Translation
	if cfg.Translation.ContextDepth < 0 {
		errs = append(errs, fmt.Errorf("translation.context_depth %d is negative", cfg.Translation.ContextDepth))
	}
	if fb := cfg.Translation.Fallback; fb.Enabled {
		if fb.Provider == "" {
			errs = append(errs, errors.New("translation.fallback.provider is required when the fallback is enabled"))
		} else {
			validateFallbackProvider(fb.Provider)
		}
		if fb.Model == "" {
			errs = append(errs, errors.New("translation.fallback.model is required when the fallback is enabled"))
		}
	}

	// Retry
	if cfg.Retry.Attempts < 0 {
		errs = append(errs, fmt.Errorf("retry.attempts %d is negative", cfg.Retry.Attempts))
	}
	if cfg.Retry.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay %s is negative", cfg.Retry.BaseDelay))
	}
	if cfg.Retry.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.max_delay %s is negative", cfg.Retry.MaxDelay))
	}
	if cfg.Retry.BaseDelay > 0 && cfg.Retry.MaxDelay > 0 && cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		slog.Warn("retry.max_delay is below retry.base_delay; every wait will be capped at max_delay",
			"base_delay", cfg.Retry.BaseDelay,
			"max_delay", cfg.Retry.MaxDelay,
		)
	}

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if cfg.Log.Format != "" && !cfg.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	// Feature availability warnings
	if !cfg.Speech.Translation.Enabled && !cfg.Translation.Fallback.Enabled {
		slog.Warn("no translation backend is configured; messages will be delivered in their original language")
	}
	if cfg.Speech.Whisper.Enabled && !cfg.Speech.TTS.Enabled {
		slog.Warn("speech.tts is disabled; voice messages will be delivered with the speaker's original audio")
	}

	return errors.Join(errs...)
}

// validateFallbackProvider logs a warning if name is not found in
// [ValidFallbackProviders]. Construction of the fallback will fail later if
// the vendor really is unknown.
func validateFallbackProvider(name string) {
	if slices.Contains(ValidFallbackProviders, strings.ToLower(name)) {
		return
	}
	slog.Warn("unknown fallback provider name, may be a typo",
		"name", name,
		"known", ValidFallbackProviders,
	)
}
