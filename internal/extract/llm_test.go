package extract

import (
	"errors"
	"testing"
	"time"
)

var testReceived = time.Date(2025, 8, 28, 5, 0, 0, 0, time.UTC)

func TestParseModelPayload_Valid(t *testing.T) {
	raw := `{"amount": 125000, "currency": "vnd", "merchant": "Pho Thin", ` +
		`"transactionDate": "2025-08-28T12:15:00+07:00", "transactionType": "Card payment", "category": "Food"}`

	tx, err := parseModelPayload(raw, testReceived)
	if err != nil {
		t.Fatalf("parseModelPayload error = %v", err)
	}
	if tx.Amount != 125000 {
		t.Errorf("Amount = %v, want 125000", tx.Amount)
	}
	if tx.Currency != "VND" {
		t.Errorf("Currency = %q, want VND", tx.Currency)
	}
	if tx.Category != CategoryFood {
		t.Errorf("Category = %q, want Food", tx.Category)
	}
	if tx.Source != SourceEmail {
		t.Errorf("Source = %q, want email", tx.Source)
	}

	want := time.Date(2025, 8, 28, 12, 15, 0, 0, time.FixedZone("UTC+7", 7*3600))
	if !tx.TransactionDate.Equal(want) {
		t.Errorf("TransactionDate = %v, want %v", tx.TransactionDate, want)
	}
}

func TestParseModelPayload_CategoryCoercion(t *testing.T) {
	raw := `{"amount": 50000, "merchant": "WinMart", "category": "Groceries"}`

	tx, err := parseModelPayload(raw, testReceived)
	if err != nil {
		t.Fatalf("parseModelPayload error = %v", err)
	}
	if tx.Category != CategoryOther {
		t.Errorf("Category = %q, want Other for unrecognized value", tx.Category)
	}
}

func TestParseModelPayload_Skip(t *testing.T) {
	tx, err := parseModelPayload(`{"skip": true}`, testReceived)
	if tx != nil {
		t.Errorf("expected nil transaction on skip, got %+v", tx)
	}
	if !errors.Is(err, ErrSkip) {
		t.Errorf("expected ErrSkip, got %v", err)
	}
}

func TestParseModelPayload_MarkdownFences(t *testing.T) {
	raw := "```json\n{\"amount\": \"1,250,000\", \"merchant\": \"CGV Vincom\", \"category\": \"Entertainment\"}\n```"

	tx, err := parseModelPayload(raw, testReceived)
	if err != nil {
		t.Fatalf("parseModelPayload error = %v", err)
	}
	if tx.Amount != 1250000 {
		t.Errorf("Amount = %v, want 1250000 (string with separators)", tx.Amount)
	}
	if tx.Category != CategoryEntertainment {
		t.Errorf("Category = %q, want Entertainment", tx.Category)
	}
}

func TestParseModelPayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "the model rambled instead of answering"},
		{"missing amount", `{"merchant": "Pho Thin"}`},
		{"missing merchant", `{"amount": 50000}`},
		{"zero amount", `{"amount": 0, "merchant": "x"}`},
		{"negative amount", `{"amount": -5, "merchant": "x"}`},
		{"non-numeric amount string", `{"amount": "lots", "merchant": "x"}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := parseModelPayload(tt.raw, testReceived)
			if err == nil {
				t.Errorf("expected error, got tx=%+v", tx)
			}
			if errors.Is(err, ErrSkip) {
				t.Error("invalid payload must not be reported as a deliberate skip")
			}
		})
	}
}

func TestParseModelPayload_DateFallback(t *testing.T) {
	raw := `{"amount": 50000, "merchant": "WinMart", "transactionDate": "not a date"}`

	tx, err := parseModelPayload(raw, testReceived)
	if err != nil {
		t.Fatalf("parseModelPayload error = %v", err)
	}
	if !tx.TransactionDate.Equal(testReceived) {
		t.Errorf("expected fallback to received time, got %v", tx.TransactionDate)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", "Sure! Here you go: {\"a\":1} Hope that helps.", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.in); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Food", CategoryFood},
		{"food", CategoryFood},
		{"  TRANSPORT  ", CategoryTransport},
		{"Groceries", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
