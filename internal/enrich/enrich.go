// Package enrich organizes raw slide text into structured sections using
// an LLM backend, with a deterministic fallback when no backend is
// configured or the call fails.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"pptconv/internal/extract"
	"pptconv/internal/fuse"
)

// Source values recorded on each enrichment.
const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Enrichment is the structured result for a single slide.
type Enrichment struct {
	OrganizedContent string
	Summary          string
	KeyPoints        []string
	Tags             []string
	Source           string
}

// Backend generates a completion for a prompt. Implementations wrap a
// specific API shape (Ollama native or OpenAI-compatible chat).
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Enricher turns fused slide content into an Enrichment. A nil backend
// means AI is disabled and every slide takes the fallback path.
type Enricher struct {
	backend Backend
	verbose bool
}

// New creates an Enricher. backend may be nil to disable AI entirely.
func New(backend Backend, verbose bool) *Enricher {
	return &Enricher{backend: backend, verbose: verbose}
}

// aiResult is the JSON shape the model is instructed to return.
type aiResult struct {
	Content   string   `json:"content"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Tags      []string `json:"tags"`
}

// Enrich processes one slide. It never returns an error: any backend or
// parse failure degrades to the fallback enrichment.
func (e *Enricher) Enrich(ctx context.Context, rec extract.SlideRecord, fused fuse.FusedContent) Enrichment {
	if e.backend == nil || fused.RawText == "" {
		return Fallback(rec, fused)
	}

	prompt := BuildPrompt(rec, fused)
	raw, err := completeWithRetry(ctx, e.backend, prompt)
	if err != nil {
		log.Printf("[Enrich] slide %d: %s failed, using fallback: %v", rec.Index, e.backend.Name(), err)
		return Fallback(rec, fused)
	}

	parsed, err := parseResult(raw)
	if err != nil {
		log.Printf("[Enrich] slide %d: unusable model output, using fallback: %v", rec.Index, err)
		return Fallback(rec, fused)
	}
	if e.verbose {
		log.Printf("[Enrich] slide %d: organized by %s", rec.Index, e.backend.Name())
	}

	out := Enrichment{
		OrganizedContent: parsed.Content,
		Summary:          strings.TrimSpace(parsed.Summary),
		KeyPoints:        parsed.KeyPoints,
		Tags:             parsed.Tags,
		Source:           SourceAI,
	}
	if out.Summary == "" {
		out.Summary = firstSentence(fused.RawText)
	}
	return out
}

// completeWithRetry calls the backend, retrying exactly once when the
// failure looks transient. Auth and quota errors are returned as-is.
func completeWithRetry(ctx context.Context, b Backend, prompt string) (string, error) {
	raw, err := b.Complete(ctx, prompt)
	if err == nil {
		return raw, nil
	}
	if !isTransient(err) {
		return "", err
	}
	if ctx.Err() != nil {
		return "", err
	}
	return b.Complete(ctx, prompt)
}

// isTransient reports whether a backend error is worth one retry.
// Transport errors and server-side 5xx qualify; client rejections do not.
func isTransient(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		// No HTTP status attached: transport-level failure.
		return true
	}
	return se.Code >= 500
}

// Fallback builds the deterministic enrichment used when AI is disabled
// or unavailable. Byte-identical output for identical input.
func Fallback(rec extract.SlideRecord, fused fuse.FusedContent) Enrichment {
	return Enrichment{
		OrganizedContent: fused.RawText,
		Summary:          firstSentence(fused.RawText),
		KeyPoints:        append([]string(nil), rec.Bullets...),
		Source:           SourceFallback,
	}
}

const summaryCap = 100

// firstSentence takes the first sentence of the text, or the first line
// when no sentence terminator appears, capped at summaryCap runes.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".!?。！？"); idx >= 0 {
		_, width := utf8.DecodeRuneInString(text[idx:])
		text = text[:idx+width]
	} else if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > summaryCap {
		runes := []rune(text)
		text = string(runes[:summaryCap])
	}
	return text
}

// parseResult extracts the JSON object from model output. Models often
// wrap the object in prose or code fences, so it slices from the first
// '{' to the last '}' before unmarshalling.
func parseResult(raw string) (*aiResult, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	var res aiResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if strings.TrimSpace(res.Content) == "" {
		return nil, fmt.Errorf("model output missing content field")
	}
	return &res, nil
}
