package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/alexanderramin/sortir/internal/llm"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every configuration variable. A double underscore
	// separates nesting levels: SORTIR_PIPELINE__FINAL_N sets pipeline.final_n.
	EnvPrefix = "SORTIR_"
	// ConfigPathEnvVar names the YAML file when --config is not given.
	ConfigPathEnvVar = "SORTIR_CONFIG"
	// GroqAPIKeyEnvVar is honoured when llm.api_key is unset. Unless
	// llm.provider is set explicitly it also selects Groq for generation.
	GroqAPIKeyEnvVar = "GROQ_API_KEY"
	// GroqModelEnvVar names the Groq model when llm.model is unset.
	GroqModelEnvVar = "GROQ_MODEL"
)

// Load layers defaults, the optional YAML file and the environment, then
// validates. path overrides SORTIR_CONFIG; a missing file is an error only
// when it was named explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// File and environment values are kept apart so groq defaults can tell
	// what the user set.
	overrides := koanf.New(".")
	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := overrides.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := overrides.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if err := k.Merge(overrides); err != nil {
		return nil, fmt.Errorf("merging overrides: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		if key := os.Getenv(GroqAPIKeyEnvVar); key != "" {
			applyGroq(&cfg.LLM, key, overrides)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyGroq fills the key from GROQ_API_KEY and, when no provider was
// configured, points generation at Groq. Endpoint and model keep any value
// the user set.
func applyGroq(c *llm.Config, key string, set *koanf.Koanf) {
	c.APIKey = key
	if set.Exists("llm.provider") {
		return
	}
	c.Provider = llm.ProviderOpenAI
	if !set.Exists("llm.endpoint") {
		c.Endpoint = llm.GroqEndpoint
	}
	if !set.Exists("llm.model") {
		c.Model = llm.GroqDefaultModel
		if m := os.Getenv(GroqModelEnvVar); m != "" {
			c.Model = m
		}
	}
}

// envKey maps SORTIR_LLM__TASKS__JUDGE__TIMEOUT_MS to llm.tasks.judge.timeout_ms.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
