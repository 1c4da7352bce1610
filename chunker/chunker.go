// Package chunker splits document text into bounded, semantically
// coherent segments for embedding. A boundary-aware mode asks an LLM to
// propose split points along headings and topics; a deterministic
// paragraph-packing fallback runs when no model is available or its
// output is unusable. Both modes preserve the original text verbatim.
package chunker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/mwestall/kbingest/llm"
)

// Config controls chunk sizing, in characters.
type Config struct {
	MinSize int // Minimum chunk size; smaller chunks are merged.
	MaxSize int // Maximum chunk size.
}

// Chunker converts long text into ordered chunks.
type Chunker struct {
	cfg      Config
	provider llm.Provider // nil disables the boundary-aware mode
	logger   *slog.Logger
}

// New returns a Chunker. Zero-value config fields get defaults; provider
// may be nil, in which case only the deterministic mode runs.
func New(cfg Config, provider llm.Provider) *Chunker {
	if cfg.MinSize == 0 {
		cfg.MinSize = 200
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1800
	}
	return &Chunker{
		cfg:      cfg,
		provider: provider,
		logger:   slog.Default().With("component", "chunker"),
	}
}

// Chunk splits text into ordered chunks. It is deterministic for
// identical input and configuration when the deterministic mode runs;
// warnings report a silent fallback from the boundary-aware mode. No
// character content is dropped or invented in either mode.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]string, []string) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if len(text) < c.cfg.MinSize {
		return []string{text}, nil
	}

	var warnings []string
	if c.provider != nil {
		chunks, err := c.boundaryChunks(ctx, text)
		if err == nil {
			return c.mergeUndersized(chunks), nil
		}
		c.logger.Warn("boundary-aware chunking failed, using deterministic fallback", "error", err)
		warnings = append(warnings, fmt.Sprintf("boundary-aware chunking failed (%v); deterministic fallback used", err))
	}

	return c.mergeUndersized(c.packParagraphs(text)), warnings
}

// boundaryPrompt asks for split offsets only; returning offsets instead
// of rewritten text guarantees the chunks are verbatim slices.
const boundaryPrompt = `You are a document segmentation engine.
Given the document below, propose character offsets at which to split it into chunks.

Rules:
- Each chunk must be between %d and %d characters.
- Split at topic, heading, or paragraph boundaries. Never split mid-sentence.
- Offsets index into the document exactly as given (0-based byte offsets).
- Return a JSON object with exactly one key: "boundaries", an ascending array of integers strictly between 0 and %d.
- Do NOT include any text outside the JSON object.

DOCUMENT:
%s`

func (c *Chunker) boundaryChunks(ctx context.Context, text string) ([]string, error) {
	prompt := fmt.Sprintf(boundaryPrompt, c.cfg.MinSize, c.cfg.MaxSize, len(text), text)
	response, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Boundaries []int `json:"boundaries"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(response)), &out); err != nil {
		return nil, fmt.Errorf("malformed boundary response: %w", err)
	}

	boundaries, err := c.validateBoundaries(text, out.Boundaries)
	if err != nil {
		return nil, err
	}

	var chunks []string
	prev := 0
	for _, b := range boundaries {
		chunks = append(chunks, text[prev:b])
		prev = b
	}
	chunks = append(chunks, text[prev:])
	return chunks, nil
}

// validateBoundaries checks the proposed offsets produce in-range,
// size-bounded, whitespace-aligned cuts. Out-of-spec output rejects the
// whole proposal so the fallback takes over.
func (c *Chunker) validateBoundaries(text string, boundaries []int) ([]int, error) {
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("no boundaries proposed")
	}
	sorted := append([]int(nil), boundaries...)
	sort.Ints(sorted)

	prev := 0
	for _, b := range sorted {
		if b <= 0 || b >= len(text) {
			return nil, fmt.Errorf("boundary %d out of range", b)
		}
		if b <= prev {
			return nil, fmt.Errorf("boundary %d not ascending", b)
		}
		// Mid-word cuts indicate the model ignored the instructions.
		if !unicode.IsSpace(rune(text[b])) && !unicode.IsSpace(rune(text[b-1])) {
			return nil, fmt.Errorf("boundary %d splits mid-word", b)
		}
		if b-prev > c.cfg.MaxSize {
			return nil, fmt.Errorf("chunk [%d,%d) exceeds max size %d", prev, b, c.cfg.MaxSize)
		}
		prev = b
	}
	if len(text)-prev > c.cfg.MaxSize {
		return nil, fmt.Errorf("final chunk exceeds max size %d", c.cfg.MaxSize)
	}
	return sorted, nil
}

// packParagraphs is the deterministic mode: split on paragraph breaks
// and greedily pack paragraphs into chunks up to MaxSize. Oversized
// paragraphs are split at sentence boundaries, then at word boundaries
// as a last resort.
func (c *Chunker) packParagraphs(text string) []string {
	paragraphs := splitParagraphs(text)

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	appendPiece := func(piece string) {
		if current.Len() > 0 && current.Len()+len(piece)+2 > c.cfg.MaxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
	}

	for _, para := range paragraphs {
		if len(para) <= c.cfg.MaxSize {
			appendPiece(para)
			continue
		}
		flush()
		for _, piece := range c.splitOversized(para) {
			appendPiece(piece)
		}
	}
	flush()
	return chunks
}

// splitOversized breaks a paragraph longer than MaxSize into pieces at
// sentence boundaries, hard-splitting single oversized sentences at the
// last word boundary before the limit.
func (c *Chunker) splitOversized(para string) []string {
	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, sent := range splitSentences(para) {
		for len(sent) > c.cfg.MaxSize {
			cut := strings.LastIndex(sent[:c.cfg.MaxSize], " ")
			if cut <= 0 {
				cut = c.cfg.MaxSize
			}
			flush()
			pieces = append(pieces, sent[:cut])
			sent = strings.TrimLeft(sent[cut:], " ")
		}
		if current.Len() > 0 && current.Len()+len(sent)+1 > c.cfg.MaxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}
	flush()
	return pieces
}

// mergeUndersized folds chunks below MinSize into a running buffer until
// the buffer reaches MinSize. The buffer never absorbs a chunk that
// would push it past MaxSize; it is instead folded backward into the
// previous chunk when that fits, or emitted alone. A trailing
// undersized buffer is merged into the previous chunk rather than
// emitted alone.
func (c *Chunker) mergeUndersized(chunks []string) []string {
	var out []string
	var buf strings.Builder

	settle := func() {
		if len(out) > 0 && len(out[len(out)-1])+2+buf.Len() <= c.cfg.MaxSize {
			out[len(out)-1] = out[len(out)-1] + "\n\n" + buf.String()
		} else {
			out = append(out, buf.String())
		}
		buf.Reset()
	}

	for _, chunk := range chunks {
		if buf.Len() > 0 {
			if buf.Len()+2+len(chunk) > c.cfg.MaxSize {
				settle()
			} else {
				buf.WriteString("\n\n")
				buf.WriteString(chunk)
				if buf.Len() >= c.cfg.MinSize {
					out = append(out, buf.String())
					buf.Reset()
				}
				continue
			}
		}
		if len(chunk) < c.cfg.MinSize {
			buf.WriteString(chunk)
			continue
		}
		out = append(out, chunk)
	}

	if buf.Len() > 0 {
		if buf.Len() >= c.cfg.MinSize || len(out) == 0 {
			out = append(out, buf.String())
		} else {
			out[len(out)-1] = out[len(out)-1] + "\n\n" + buf.String()
		}
	}
	return out
}

// splitParagraphs splits text on blank-line boundaries, dropping empty
// segments.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences is a simple sentence tokeniser: it splits after
// ./?/! followed by whitespace or end of string.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
