package kbingest

import (
	"os"
	"path/filepath"

	"github.com/mwestall/kbingest/archive"
	"github.com/mwestall/kbingest/extract"
	"github.com/mwestall/kbingest/llm"
)

// Config holds all configuration for the ingestion pipeline.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.kbingest/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "kbingest".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.kbingest/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Remote enables the remote converter/OCR backend for image and
	// legacy office formats. Nil disables it.
	Remote *extract.RemoteConfig `json:"remote,omitempty" yaml:"remote,omitempty"`

	// Archive selects the raw-store backend (local or S3).
	Archive archive.Config `json:"archive" yaml:"archive"`

	// Chunking bounds, in characters.
	MinChunkSize int `json:"min_chunk_size" yaml:"min_chunk_size"`
	MaxChunkSize int `json:"max_chunk_size" yaml:"max_chunk_size"`

	// MinTextLength is the validation floor for extracted text.
	MinTextLength int `json:"min_text_length" yaml:"min_text_length"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// EmbedContextChars is the budget above which text is chunked before
	// embedding; shorter text is embedded whole.
	EmbedContextChars int `json:"embed_context_chars" yaml:"embed_context_chars"`

	// EmbedConcurrency caps parallel embedding calls per ingestion.
	EmbedConcurrency int `json:"embed_concurrency" yaml:"embed_concurrency"`
}

// DefaultConfig returns a Config with sensible defaults. The database
// is stored in ~/.kbingest/kbingest.db, raw documents under
// ./data/archive.
func DefaultConfig() Config {
	return Config{
		DBName:     "kbingest",
		StorageDir: "home",
		Chat: llm.Config{
			Model: "gpt-4o-mini",
		},
		Embedding: llm.Config{
			EmbeddingModel: "text-embedding-3-small",
		},
		Archive: archive.Config{
			Type:      archive.TypeLocal,
			LocalPath: "./data/archive",
		},
		MinChunkSize:      200,
		MaxChunkSize:      1800,
		EmbeddingDim:      1536,
		EmbedContextChars: 6000,
		EmbedConcurrency:  8,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "kbingest"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".kbingest", name+".db")
	}
}
