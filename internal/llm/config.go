package llm

// TaskType identifies the kind of LLM task being performed.
type TaskType string

const (
	TaskJudge  TaskType = "judge"
	TaskDigest TaskType = "digest"
	TaskEmbed  TaskType = "embed"
)

// Provider names the generation backend.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Groq serves the OpenAI-compatible API.
const (
	GroqEndpoint     = "https://api.groq.com/openai/v1"
	GroqDefaultModel = "llama-3.1-8b-instant"
)

// TaskConfig holds per-task LLM parameters.
type TaskConfig struct {
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gte=0"`
	TimeoutMs   int     `koanf:"timeout_ms" validate:"gte=0"` // overrides global if > 0
}

// Tasks groups the per-task settings.
type Tasks struct {
	Judge  TaskConfig `koanf:"judge"`
	Digest TaskConfig `koanf:"digest"`
	Embed  TaskConfig `koanf:"embed"`
}

// Config holds all configuration for the LLM subsystem.
//
// Generation (judge, digest) goes to Endpoint using Provider's wire format.
// Embeddings always use the Ollama API at EmbedEndpoint.
type Config struct {
	Provider      string `koanf:"provider" validate:"oneof=ollama openai"`
	Endpoint      string `koanf:"endpoint" validate:"required,url"`
	Model         string `koanf:"model" validate:"required"`
	APIKey        string `koanf:"api_key"`
	EmbedEndpoint string `koanf:"embed_endpoint" validate:"required,url"`
	EmbedModel    string `koanf:"embed_model" validate:"required"`
	TimeoutMs     int    `koanf:"timeout_ms" validate:"gt=0"`
	MaxRetries    int    `koanf:"max_retries" validate:"gte=0"`
	LogCalls      bool   `koanf:"log_calls"`
	Tasks         Tasks  `koanf:"tasks"`
}

// DefaultConfig returns a Config pointing at a local Ollama instance.
func DefaultConfig() Config {
	return Config{
		Provider:      ProviderOllama,
		Endpoint:      "http://localhost:11434",
		Model:         "llama3.1",
		EmbedEndpoint: "http://localhost:11434",
		EmbedModel:    "nomic-embed-text",
		TimeoutMs:     30000,
		MaxRetries:    1,
		Tasks: Tasks{
			Judge:  TaskConfig{Temperature: 0.2, MaxTokens: 1024, TimeoutMs: 45000},
			Digest: TaskConfig{Temperature: 0.2, MaxTokens: 2048, TimeoutMs: 90000},
			Embed:  TaskConfig{TimeoutMs: 60000},
		},
	}
}

// Task returns the settings for a task type.
func (c Config) Task(task TaskType) TaskConfig {
	switch task {
	case TaskJudge:
		return c.Tasks.Judge
	case TaskDigest:
		return c.Tasks.Digest
	case TaskEmbed:
		return c.Tasks.Embed
	default:
		return TaskConfig{}
	}
}

// TaskTimeout returns the effective timeout for a given task type.
// Uses the task-specific timeout if set, otherwise the global timeout.
func (c Config) TaskTimeout(task TaskType) int {
	if tc := c.Task(task); tc.TimeoutMs > 0 {
		return tc.TimeoutMs
	}
	return c.TimeoutMs
}
