package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for nutrition estimation.
const DefaultModelName = "gemini-2.5-flash"

// GeminiEstimator implements Estimator on the Gemini API.
type GeminiEstimator struct {
	model string
}

func NewGeminiEstimator(model string) *GeminiEstimator {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiEstimator{model: model}
}

func (e *GeminiEstimator) Estimate(ctx context.Context, description, hint string) (*Estimate, error) {
	estimates, err := e.EstimateBatch(ctx, []string{description}, hint)
	if err != nil {
		return nil, err
	}
	return estimates[0], nil
}

// EstimateBatch asks the model for all descriptions in one round trip
// and returns estimates in input order.
func (e *GeminiEstimator) EstimateBatch(ctx context.Context, descriptions []string, hint string) ([]*Estimate, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("EstimateBatch: create genai client: %w", err)
	}

	prompt := buildEstimationPrompt(descriptions, hint)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("EstimateBatch: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("EstimateBatch: empty response from model")
	}

	return parseEstimatePayload(rawText, len(descriptions), e.model)
}

func buildEstimationPrompt(descriptions []string, hint string) string {
	var b strings.Builder
	b.WriteString("You are a nutritionist estimating the macro content of meals.\n\n")
	if hint != "" {
		b.WriteString("Context: " + hint + "\n\n")
	}
	b.WriteString("For each numbered meal below, estimate a typical single serving.\n")
	b.WriteString("Output a STRICT JSON array with EXACTLY one object per meal, in the same order.\n")
	b.WriteString("Each object has these fields:\n")
	b.WriteString("- \"calories\": number, kcal\n")
	b.WriteString("- \"protein\": number, grams\n")
	b.WriteString("- \"carbs\": number, grams\n")
	b.WriteString("- \"fat\": number, grams\n")
	b.WriteString("- \"confidence\": string, EXACTLY one of: low, medium, high\n")
	b.WriteString("- \"reasoning\": string, one short sentence\n\n")
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n\n")
	b.WriteString("Meals:\n")
	for i, d := range descriptions {
		b.WriteString(strconv.Itoa(i+1) + ". " + d + "\n")
	}
	return b.String()
}

// parseEstimatePayload validates the model's JSON reply against the
// request size and normalizes each entry.
func parseEstimatePayload(raw string, want int, model string) ([]*Estimate, error) {
	clean := cleanModelJSON(raw)

	var entries []map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &entries); err != nil {
		return nil, fmt.Errorf("parseEstimatePayload: unmarshal JSON: %w", err)
	}
	if len(entries) != want {
		return nil, fmt.Errorf("parseEstimatePayload: got %d estimates, want %d", len(entries), want)
	}

	estimates := make([]*Estimate, 0, want)
	for _, entry := range entries {
		reasoning, _ := entry["reasoning"].(string)
		estimates = append(estimates, &Estimate{
			Calories:   nonNegativeNumber(entry["calories"]),
			Protein:    nonNegativeNumber(entry["protein"]),
			Carbs:      nonNegativeNumber(entry["carbs"]),
			Fat:        nonNegativeNumber(entry["fat"]),
			Confidence: normalizeConfidence(entry["confidence"]),
			Source:     model,
			Reasoning:  strings.TrimSpace(reasoning),
		})
	}
	return estimates, nil
}

// nonNegativeNumber coerces a JSON value to a float, clamping missing,
// malformed and negative values to zero.
func nonNegativeNumber(v interface{}) float64 {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}

func normalizeConfidence(v interface{}) string {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceHigh:
		return ConfidenceHigh
	default:
		return ConfidenceLow
	}
}

// cleanModelJSON strips Markdown fences and surrounding junk from the
// model reply, keeping only the outermost JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
