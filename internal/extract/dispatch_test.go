package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tqhuy/finfit/internal/logger"
)

// fakeLLM is a canned LLMStrategy for dispatch tests.
type fakeLLM struct {
	tx    *ParsedTransaction
	err   error
	calls int
}

func (f *fakeLLM) Extract(ctx context.Context, subject, body string, received time.Time) (*ParsedTransaction, error) {
	f.calls++
	return f.tx, f.err
}

func TestParseEmail_LLMSuccessWins(t *testing.T) {
	llm := &fakeLLM{tx: &ParsedTransaction{Amount: 50000, Merchant: "Pho Thin", Category: CategoryFood, Source: SourceEmail}}
	e := New(llm, logger.New())

	tx := e.ParseEmail(context.Background(), "alerts@timo.vn", "Timo notice", bankFixture, time.Now())
	if tx == nil {
		t.Fatal("expected a transaction")
	}
	if tx.Merchant != "Pho Thin" {
		t.Errorf("expected the LLM result, got merchant %q", tx.Merchant)
	}
	if tx.EmailSubject != "Timo notice" {
		t.Errorf("EmailSubject = %q", tx.EmailSubject)
	}
}

func TestParseEmail_SkipIsTerminal(t *testing.T) {
	// The model deliberately skipped; the pattern parser would succeed
	// on this body, but a skip must not fall back to it.
	llm := &fakeLLM{err: ErrSkip}
	e := New(llm, logger.New())

	tx := e.ParseEmail(context.Background(), "alerts@timo.vn", "Timo notice", bankFixture, time.Now())
	if tx != nil {
		t.Errorf("skip must be terminal, got %+v", tx)
	}
}

func TestParseEmail_FailureFallsBackToPattern(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable")}
	e := New(llm, logger.New())

	tx := e.ParseEmail(context.Background(), "alerts@timo.vn", "Timo notice", bankFixture, time.Now())
	if tx == nil {
		t.Fatal("expected fallback to the bank parser")
	}
	if tx.Amount != 38000 {
		t.Errorf("Amount = %v, want 38000 from the pattern parser", tx.Amount)
	}
}

func TestParseEmail_NoLLMUsesPatterns(t *testing.T) {
	e := New(nil, logger.New())

	tx := e.ParseEmail(context.Background(), "no-reply@grab.com", "Your GrabFood E-Receipt", grabFoodFixture, time.Now())
	if tx == nil {
		t.Fatal("expected the ride parser to produce a transaction")
	}
	if tx.Amount != 87000 {
		t.Errorf("Amount = %v, want 87000", tx.Amount)
	}
}

func TestParseEmail_LargeDottedAmountSurvivesSanitization(t *testing.T) {
	// An eight-digit dot-grouped amount must reach the bank parser
	// intact; PII redaction runs on the body first.
	body := "Giao dich: Chuyen khoan\n" +
		"Gia tri: 12.500.000 VND\n" +
		"Thoi gian: 28/08/2025 12:15\n" +
		"Noi dung: Thanh toan hoa don"
	e := New(nil, logger.New())

	tx := e.ParseEmail(context.Background(), "alerts@timo.vn", "Timo notice", body, time.Now())
	if tx == nil {
		t.Fatal("expected a transaction")
	}
	if tx.Amount != 12500000 {
		t.Errorf("Amount = %v, want 12500000", tx.Amount)
	}
	if tx.Currency != "VND" {
		t.Errorf("Currency = %q, want VND", tx.Currency)
	}
}

func TestParseEmail_UnknownSenderYieldsNil(t *testing.T) {
	e := New(nil, logger.New())

	tx := e.ParseEmail(context.Background(), "newsletter@example.com", "Weekly digest", "nothing transactional here", time.Now())
	if tx != nil {
		t.Errorf("expected nil for an unknown sender, got %+v", tx)
	}
}

func TestParseEmail_MalformedInputNeverPanics(t *testing.T) {
	e := New(&fakeLLM{err: errors.New("boom")}, logger.New())

	inputs := []string{"", "<<<<", string([]byte{0xff, 0xfe}), "Total: ₫"}
	for _, body := range inputs {
		_ = e.ParseEmail(context.Background(), "alerts@timo.vn", "x", body, time.Now())
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		txType, merchant string
		want             Category
	}{
		{"Card payment", "HIGHLANDS COFFEE", CategoryFood},
		{"Ride", "Grab", CategoryTransport},
		{"Card payment", "SHOPEE.VN", CategoryShopping},
		{"Card payment", "CGV VINCOM", CategoryEntertainment},
		{"Auto debit", "EVN HANOI", CategoryBills},
		{"Card payment", "NHA THUOC LONG CHAU", CategoryHealth},
		{"Card payment", "UNKNOWN MERCHANT 123", CategoryOther},
	}
	for _, tt := range tests {
		if got := InferCategory(tt.txType, tt.merchant); got != tt.want {
			t.Errorf("InferCategory(%q, %q) = %q, want %q", tt.txType, tt.merchant, got, tt.want)
		}
	}
}
