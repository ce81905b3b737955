package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, EMBEDDING_API_KEY, ...)
//  2. YAML config file (configPath, or $NEWSRAG_CONFIG when empty)
//  3. Hardcoded defaults
//
// Environment variables map to config keys by splitting on the first
// underscore: the leading token is the section, the rest is the field.
//
//	SERVER_PORT            -> server.port
//	QDRANT_VECTOR_SIZE     -> qdrant.vector_size
//	EMBEDDING_API_KEY      -> embedding.api_key
//	INGEST_BATCH_PAUSE     -> ingest.batch_pause
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		configPath = os.Getenv("NEWSRAG_CONFIG")
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// knownSections limits env loading to newsrag's own variables so unrelated
// process environment (PATH, HOME, ...) never leaks into the config tree.
var knownSections = map[string]bool{
	"server":     true,
	"logging":    true,
	"qdrant":     true,
	"redis":      true,
	"embedding":  true,
	"generation": true,
	"chat":       true,
	"ingest":     true,
}

// envTransform maps SECTION_FIELD_NAME to section.field_name. Variables
// outside the known sections are dropped.
func envTransform(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || !knownSections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}
