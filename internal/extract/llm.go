package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
	"go.uber.org/zap"
)

// extractionSystemPrompt is shared by every vendor
const extractionSystemPrompt = `You extract structured facts from healthcare billing documents.

CRITICAL RULES:
1. Return ONLY one JSON object. No markdown, no commentary.
2. Use exactly the keys you are given. Use "" for anything not stated in the text.
3. Copy values as written. DO NOT infer, calculate, or guess missing values.`

// maxPromptChars bounds the document text sent to a backend
const maxPromptChars = 24000

// BuildExtractionPrompt lists every canonical key and embeds the document
func BuildExtractionPrompt(rawText string) string {
	var b strings.Builder
	b.WriteString("Extract these fields from the document below:\n")
	for _, k := range model.CanonicalKeys() {
		b.WriteString("- ")
		b.WriteString(k)
		b.WriteByte('\n')
	}
	b.WriteString("\nDates as written, amounts as plain numbers without currency symbols.\n")
	b.WriteString("Respond with a single JSON object containing every key above.\n\nDocument:\n")
	b.WriteString(truncate(rawText, maxPromptChars))
	return b.String()
}

// LLMExtractor extracts facts with any model backend
type LLMExtractor struct {
	backend llm.Backend
}

// NewLLMExtractor creates a model-backed extractor
func NewLLMExtractor(backend llm.Backend) *LLMExtractor {
	return &LLMExtractor{backend: backend}
}

// Name returns the backend key
func (e *LLMExtractor) Name() string {
	return e.backend.Name()
}

// Extract prompts the backend and parses its JSON. Backend and parse failures
// are logged and yield the empty schema.
func (e *LLMExtractor) Extract(ctx context.Context, rawText string) (facts model.Facts) {
	defer recoverFacts(e.Name(), &facts)

	resp, err := e.backend.Complete(ctx, llm.CompletionRequest{
		System: extractionSystemPrompt,
		Prompt: BuildExtractionPrompt(rawText),
		JSON:   true,
	})
	if err != nil {
		zap.L().Warn("fact extraction failed", zap.String("backend", e.Name()), zap.Error(err))
		return model.NewFacts()
	}

	parsed, err := ParseFacts(resp.Text)
	if err != nil {
		zap.L().Warn("fact extraction returned invalid JSON", zap.String("backend", e.Name()), zap.Error(err))
		return model.NewFacts()
	}
	return parsed
}

// ParseFacts decodes a model response into normalized, complete facts
func ParseFacts(response string) (model.Facts, error) {
	cleaned := CleanJSON(response)
	if cleaned == "" || cleaned[0] != '{' {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}

	// Some vendors nest the record
	if inner, ok := raw["facts"].(map[string]any); ok {
		raw = inner
	}

	facts := model.NewFacts()
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if model.IsCanonicalKey(key) {
			facts[key] = scalarString(v)
		}
	}
	return normalize.Facts(facts), nil
}

// scalarString renders a JSON scalar; objects, arrays and null become ""
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		switch strings.ToLower(s) {
		case "null", "none", "n/a", "unknown":
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
