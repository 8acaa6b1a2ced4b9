package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roleplayabyss/abyss/internal/inference"
)

// Config holds application configuration.
type Config struct {
	// Endpoint is the generation endpoint of the inference backend.
	Endpoint string `json:"endpoint"`

	// TimeoutSeconds bounds the inference round-trip. Exceeding it
	// resolves to a placeholder reply, never a hang.
	TimeoutSeconds int `json:"timeout_seconds"`

	// MaxNewTokens caps the generated continuation length per turn.
	MaxNewTokens int `json:"max_new_tokens"`

	// StopSequences halt generation; defaults to ["You:"].
	StopSequences []string `json:"stop_sequences,omitempty"`

	// EnrichmentEnabled controls the best-effort description lookup for
	// new characters. Lookups are always fail-soft even when enabled.
	// A pointer so an explicit false in config.json survives the merge;
	// unset means enabled.
	EnrichmentEnabled *bool `json:"enrichment_enabled,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names to disable entirely
	// (e.g. "chat" disables chat_start, chat_send, chat_transcript).
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// EnrichmentOn reports whether the description lookup is enabled.
func (c *Config) EnrichmentOn() bool {
	return c.EnrichmentEnabled == nil || *c.EnrichmentEnabled
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	enrich := true
	return &Config{
		Endpoint:          inference.DefaultEndpoint,
		TimeoutSeconds:    60,
		MaxNewTokens:      inference.DefaultMaxNewTokens,
		StopSequences:     inference.DefaultStopSequences(),
		EnrichmentEnabled: &enrich,
	}
}

// Load loads configuration from baseDir/config.json, applies defaults for
// unset values, then applies ABYSS_* environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.abyss.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	merged := Merge(DefaultConfig(), cfg)
	if err := applyEnv(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars that are set; the stop
// sequence list is replaced wholesale when the overlay provides one.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Endpoint = overlay.Endpoint
	if result.Endpoint == "" {
		result.Endpoint = base.Endpoint
	}

	result.TimeoutSeconds = overlay.TimeoutSeconds
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = base.TimeoutSeconds
	}

	result.MaxNewTokens = overlay.MaxNewTokens
	if result.MaxNewTokens == 0 {
		result.MaxNewTokens = base.MaxNewTokens
	}

	result.StopSequences = overlay.StopSequences
	if result.StopSequences == nil {
		result.StopSequences = base.StopSequences
	}

	result.EnrichmentEnabled = overlay.EnrichmentEnabled
	if result.EnrichmentEnabled == nil {
		result.EnrichmentEnabled = base.EnrichmentEnabled
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// applyEnv overrides config fields from ABYSS_* environment variables.
func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("ABYSS_ENDPOINT")); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("ABYSS_TIMEOUT_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errInvalidEnv("ABYSS_TIMEOUT_SECONDS", v)
		}
		cfg.TimeoutSeconds = n
	}
	if v := strings.TrimSpace(os.Getenv("ABYSS_MAX_NEW_TOKENS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errInvalidEnv("ABYSS_MAX_NEW_TOKENS", v)
		}
		cfg.MaxNewTokens = n
	}
	if v, ok := os.LookupEnv("ABYSS_ENRICHMENT"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errInvalidEnv("ABYSS_ENRICHMENT", v)
		}
		cfg.EnrichmentEnabled = &b
	}
	return nil
}

func errInvalidEnv(key, value string) error {
	return errors.New("invalid " + key + " value " + strconv.Quote(value))
}
