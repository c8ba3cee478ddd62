package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tqhuy/finfit/internal/sanitize"
)

// DefaultModelName is the Gemini model used for extraction.
const DefaultModelName = "gemini-2.5-flash"

// LLMStrategy is the primary extraction strategy. Implementations
// return (nil, ErrSkip) for deliberate non-transactions and any other
// error for "could not understand this email"; only the latter lets
// the dispatcher fall back to the pattern parsers.
type LLMStrategy interface {
	Extract(ctx context.Context, subject, body string, received time.Time) (*ParsedTransaction, error)
}

// GeminiExtractor implements LLMStrategy on the Gemini API.
type GeminiExtractor struct {
	model string
}

// NewGeminiExtractor creates an extractor for the given model name,
// falling back to DefaultModelName when empty.
func NewGeminiExtractor(model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{model: model}
}

// Extract sends the sanitized, truncated body to Gemini and parses the
// strict-JSON reply. Transport errors and unparsable output are
// reported as plain errors so the caller can fall back.
func (e *GeminiExtractor) Extract(ctx context.Context, subject, body string, received time.Time) (*ParsedTransaction, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("Extract: create genai client: %w", err)
	}

	prompt := buildExtractionPrompt(subject, sanitize.TruncateForModel(body))

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Extract: empty response from model")
	}

	return parseModelPayload(rawText, received)
}

func buildExtractionPrompt(subject, body string) string {
	var b strings.Builder
	b.WriteString("You are a transaction extractor for bank and delivery-service notification emails.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Decide whether the email below describes a COMPLETED payment transaction.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n\n")
	b.WriteString("If it is a completed transaction, output a single JSON object with these fields:\n")
	b.WriteString("- \"amount\": number, the FINAL total paid (never a subtotal or line item)\n")
	b.WriteString("- \"currency\": string, ISO 4217 code, e.g. \"VND\"\n")
	b.WriteString("- \"merchant\": string, the merchant or counterparty name\n")
	b.WriteString("- \"transactionDate\": string, ISO 8601 with UTC offset\n")
	b.WriteString("- \"transactionType\": string, e.g. \"Card payment\"\n")
	b.WriteString("- \"category\": string, EXACTLY one of: Food, Transport, Shopping, Entertainment, Bills, Health, Other\n\n")
	b.WriteString("If it is NOT a completed transaction (pending order, promotion, OTP, statement summary), output exactly:\n")
	b.WriteString("{\"skip\": true}\n\n")
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n\n")
	b.WriteString("Subject: " + subject + "\n\n")
	b.WriteString("Body:\n" + body + "\n")
	return b.String()
}

// parseModelPayload validates and normalizes the model's JSON reply.
// It is total over arbitrary input: every failure mode is an error.
func parseModelPayload(raw string, received time.Time) (*ParsedTransaction, error) {
	clean := cleanModelJSON(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return nil, fmt.Errorf("parseModelPayload: unmarshal JSON: %w", err)
	}

	if skip, ok := obj["skip"].(bool); ok && skip {
		return nil, ErrSkip
	}

	amount, err := coerceAmount(obj["amount"])
	if err != nil {
		return nil, fmt.Errorf("parseModelPayload: %w", err)
	}

	merchant, _ := obj["merchant"].(string)
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return nil, fmt.Errorf("parseModelPayload: missing merchant")
	}

	currency, _ := obj["currency"].(string)
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "VND"
	}

	txType, _ := obj["transactionType"].(string)
	category, _ := obj["category"].(string)

	txDate := received
	if dateStr, ok := obj["transactionDate"].(string); ok && dateStr != "" {
		if parsed, ok := parseFlexibleTimestamp(dateStr); ok {
			txDate = parsed
		}
	}

	return &ParsedTransaction{
		TransactionType: strings.TrimSpace(txType),
		Amount:          amount,
		Currency:        currency,
		TransactionDate: txDate,
		Merchant:        merchant,
		Category:        NormalizeCategory(category),
		Source:          SourceEmail,
	}, nil
}

// coerceAmount accepts the amount as a JSON number or as a string with
// thousands separators. Zero and negative amounts are invalid.
func coerceAmount(v interface{}) (float64, error) {
	var amount float64
	switch val := v.(type) {
	case float64:
		amount = val
	case string:
		s := strings.TrimSpace(val)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "₫")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("amount %q is not numeric", val)
		}
		amount = parsed
	case nil:
		return 0, fmt.Errorf("missing amount")
	default:
		return 0, fmt.Errorf("amount has type %T, want number or string", v)
	}

	if amount <= 0 {
		return 0, fmt.Errorf("amount %v is not positive", amount)
	}
	return amount, nil
}

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFlexibleTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, format := range timestampFormats {
		if t, err := time.ParseInLocation(format, s, businessZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// cleanModelJSON strips Markdown fences and surrounding junk from the
// model reply, keeping only the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
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

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
