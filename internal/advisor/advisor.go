package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Fallback values returned instead of errors. The two classification
// sentinels stay distinct so callers can tell "the client never came up"
// from "an initialized client's call failed".
const (
	AdviceUnavailable       = "AI assistance is currently not available."
	CategoryUnavailable     = "Uncategorized (AI service error)"
	CategoryClassifyFailure = "Miscellaneous (NLP Failure)"
)

// generateFunc sends contents to the model and returns the response text.
type generateFunc func(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)

// Advisor wraps the Gemini client for free-text advice and single-label
// transaction classification. A nil client means degraded mode: every
// operation returns its fallback value instead of failing.
type Advisor struct {
	client   *genai.Client
	model    string
	log      zerolog.Logger
	generate generateFunc
}

// New creates an Advisor. If the GenAI client cannot be initialized
// (typically missing credentials) the advisor starts in degraded mode;
// this is logged but never fatal.
func New(ctx context.Context, model string, log zerolog.Logger) *Advisor {
	a := &Advisor{model: model, log: log}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		log.Warn().Err(err).Msg("GenAI client unavailable, advisor running in degraded mode")
		return a
	}

	a.client = client
	a.generate = func(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, a.model, contents, cfg)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return a
}

// Available reports whether the underlying GenAI client was initialized.
func (a *Advisor) Available() bool {
	return a.generate != nil
}

// Advise answers a free-text financial query. In degraded mode it returns
// AdviceUnavailable with a nil error; an API failure is a real error.
func (a *Advisor) Advise(ctx context.Context, query string) (string, error) {
	if !a.Available() {
		return AdviceUnavailable, nil
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: adviceSystemInstruction}},
		},
		// Low temperature favors factual responses over creative variation.
		Temperature: genai.Ptr[float32](0.3),
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: query}},
		},
	}

	text, err := a.generate(ctx, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("Advise: generate content: %w", err)
	}

	return text, nil
}

// Classify assigns a single category label to a raw transaction
// description. It never returns an error: any failure maps to one of the
// classification sentinels.
func (a *Advisor) Classify(ctx context.Context, description string) string {
	if !a.Available() {
		return CategoryUnavailable
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildClassificationPrompt(description)}},
		},
	}

	text, err := a.generate(ctx, contents, nil)
	if err != nil {
		a.log.Warn().Err(err).Str("description", description).Msg("Classification call failed")
		return CategoryClassifyFailure
	}

	label := cleanLabel(text)
	if !isKnownCategory(label) {
		// Passed through verbatim; logged so out-of-set labels are visible.
		a.log.Warn().Str("label", label).Msg("Model returned label outside the category set")
	}

	return label
}

// cleanLabel trims whitespace and strips trailing periods from the model
// response so only the category name remains.
func cleanLabel(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, ".")
	return strings.TrimSpace(s)
}
