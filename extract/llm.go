package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mwestall/kbingest/llm"
)

// maxEntityPromptChars caps how much document text goes into a single
// extraction call. Longer documents are truncated for entity extraction;
// the full text still flows to chunking and storage untouched.
const maxEntityPromptChars = 28000

// LLMBackend extracts text natively and entities/relationships through an
// LLM completion service. It is the high-accuracy, high-cost primary.
type LLMBackend struct {
	provider  llm.Provider
	converter *ConverterBackend
	logger    *slog.Logger
}

// NewLLMBackend creates the LLM-reasoning backend. Document text is
// obtained through the same native parsers the converter backend uses;
// the provider is only consulted for semantic extraction.
func NewLLMBackend(provider llm.Provider) *LLMBackend {
	return &LLMBackend{
		provider:  provider,
		converter: NewConverterBackend(),
		logger:    slog.Default().With("backend", "llm"),
	}
}

func (b *LLMBackend) Name() string { return "llm" }

func (b *LLMBackend) SupportedFormats() []string {
	return b.converter.SupportedFormats()
}

// Extract parses the file natively, then runs entity and relationship
// extraction over the text when requested.
func (b *LLMBackend) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	result, err := b.converter.Extract(ctx, path, Options{})
	if err != nil {
		return nil, err
	}
	result.Backend = b.Name()
	return b.enrich(ctx, result, opts)
}

// ExtractText runs semantic extraction directly over raw text.
func (b *LLMBackend) ExtractText(ctx context.Context, text string, opts Options) (*Result, error) {
	result := &Result{
		RawText:    text,
		Backend:    b.Name(),
		Confidence: ConfidenceHigh,
		Metadata:   map[string]string{},
	}
	return b.enrich(ctx, result, opts)
}

func (b *LLMBackend) enrich(ctx context.Context, result *Result, opts Options) (*Result, error) {
	result.Confidence = ConfidenceHigh
	if !opts.ExtractEntities {
		return result, nil
	}

	entities, err := b.extractEntities(ctx, result.RawText, opts.EntityTypes)
	if err != nil {
		return nil, fmt.Errorf("entity extraction: %w", err)
	}
	result.Entities = entities

	if len(entities) > 1 {
		rels, err := b.extractRelationships(ctx, result.RawText, entities)
		if err != nil {
			// Entities alone are still useful; degrade rather than fail.
			b.logger.Warn("relationship extraction failed", "error", err)
			result.ValidationWarnings = append(result.ValidationWarnings,
				"relationship extraction failed: "+err.Error())
		} else {
			result.Relationships = rels
		}
	}
	return result, nil
}

type entityEnvelope struct {
	Entities []struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		Value      string `json:"value"`
		SourceText string `json:"source_text"`
	} `json:"entities"`
}

type relationshipEnvelope struct {
	Relationships []struct {
		Source       string            `json:"source"`
		Target       string            `json:"target"`
		RelationType string            `json:"relation_type"`
		Properties   map[string]string `json:"properties"`
	} `json:"relationships"`
}

func (b *LLMBackend) extractEntities(ctx context.Context, text string, entityTypes []string) ([]ExtractedEntity, error) {
	if len(entityTypes) == 0 {
		entityTypes = KnownEntityTypes()
	}
	promptText := text
	if len(promptText) > maxEntityPromptChars {
		promptText = promptText[:maxEntityPromptChars]
	}

	prompt := fmt.Sprintf(entityExtractionPrompt,
		"- "+strings.Join(entityTypes, "\n- "),
		hintBlock(preExtractHints(promptText)),
		promptText)

	var envelope entityEnvelope
	if err := b.completeJSON(ctx, prompt, &envelope); err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(entityTypes))
	for _, t := range entityTypes {
		requested[strings.ToLower(t)] = true
	}

	entities := make([]ExtractedEntity, 0, len(envelope.Entities))
	for _, e := range envelope.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		typ := NormalizeEntityType(e.Type)
		if typ != TypeUnknown && !requested[typ] {
			continue
		}
		entities = append(entities, ExtractedEntity{
			Name:       name,
			Type:       typ,
			Value:      strings.TrimSpace(e.Value),
			Confidence: ConfidenceHigh,
			SourceText: strings.TrimSpace(e.SourceText),
		})
	}

	b.logger.Debug("extracted entities", "returned", len(envelope.Entities), "kept", len(entities))
	return entities, nil
}

func (b *LLMBackend) extractRelationships(ctx context.Context, text string, entities []ExtractedEntity) ([]ExtractedRelationship, error) {
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = fmt.Sprintf("%q (%s)", e.Name, e.Type)
	}

	promptText := text
	if len(promptText) > maxEntityPromptChars {
		promptText = promptText[:maxEntityPromptChars]
	}
	prompt := fmt.Sprintf(relationshipExtractionPrompt, strings.Join(names, "\n"), promptText)

	var envelope relationshipEnvelope
	if err := b.completeJSON(ctx, prompt, &envelope); err != nil {
		return nil, err
	}

	rels := make([]ExtractedRelationship, 0, len(envelope.Relationships))
	for _, r := range envelope.Relationships {
		if strings.TrimSpace(r.Source) == "" || strings.TrimSpace(r.Target) == "" {
			continue
		}
		rels = append(rels, ExtractedRelationship{
			Source:       strings.TrimSpace(r.Source),
			Target:       strings.TrimSpace(r.Target),
			RelationType: strings.TrimSpace(r.RelationType),
			Properties:   r.Properties,
		})
	}
	return rels, nil
}

// completeJSON sends a prompt in JSON mode and unmarshals the response,
// retrying malformed output up to three times.
func (b *LLMBackend) completeJSON(ctx context.Context, prompt string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		response, err := b.provider.Complete(ctx, llm.CompletionRequest{
			Prompt:      prompt,
			Temperature: 0.0,
			JSONMode:    true,
		})
		if err != nil {
			return err
		}

		cleaned := llm.CleanJSON(response)
		if err := json.Unmarshal([]byte(cleaned), out); err != nil {
			lastErr = err
			b.logger.Warn("malformed extraction response", "attempt", attempt, "error", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("parsing extraction response: %w", lastErr)
}
