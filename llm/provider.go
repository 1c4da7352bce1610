package llm

import "context"

// Provider is the interface for LLM completions and embeddings.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Complete sends a system+user prompt and returns the raw completion text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Embed generates embeddings for a batch of texts, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionRequest is a single chat completion request.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	// JSONMode asks the model to return a single JSON object.
	JSONMode bool
}

// Config configures a provider endpoint. BaseURL may point at any
// OpenAI-compatible service (OpenAI, Ollama, LM Studio, vLLM, ...).
type Config struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	Model          string `json:"model" yaml:"model"`
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`
}
