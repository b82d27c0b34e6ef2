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

const maxConfigFileSize = 1 << 20

// Load builds the configuration from an optional YAML file plus
// environment variable overrides.
//
// Precedence (highest to lowest):
//  1. Environment variables with the CHATBOT_ prefix
//  2. YAML config file (configPath, skipped when empty or missing)
//  3. Defaults
//
// Environment variables map section and field through underscores:
//
//	CHATBOT_SERVER_PORT          -> server.port
//	CHATBOT_EMBEDDING_BASE_URL   -> embedding.base_url
//	CHATBOT_RETRIEVAL_SIMILARITY_THRESHOLD -> retrieval.similarity_threshold
//
// The returned Config has defaults applied and is validated; a non-nil
// error wraps ErrInvalidConfig and should abort startup.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", ErrInvalidConfig, configPath, maxConfigFileSize)
			}
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("%w: parsing config file %s: %v", ErrInvalidConfig, configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("CHATBOT_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling config: %v", ErrInvalidConfig, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envTransform maps CHATBOT_SECTION_FIELD_NAME to section.field_name.
// Splits on the first underscore only: the section never contains one,
// field names may.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, "CHATBOT_")
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}
