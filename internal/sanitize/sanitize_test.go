package sanitize

import (
	"strings"
	"testing"
)

func TestSanitize_StripTags(t *testing.T) {
	raw := `<html><head><style>body { color: red; }</style></head>` +
		`<body><script>alert("x")</script><p>Payment of <b>38,000 VND</b> received</p></body></html>`

	got := Sanitize(raw)

	if strings.Contains(got, "<") {
		t.Errorf("expected no tags, got: %q", got)
	}
	if strings.Contains(got, "color: red") || strings.Contains(got, "alert") {
		t.Errorf("style/script content leaked: %q", got)
	}
	if !strings.Contains(got, "38,000 VND") {
		t.Errorf("expected payment text preserved, got: %q", got)
	}
}

func TestSanitize_RedactsPII(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		notWant string
	}{
		{
			name:    "email address",
			in:      "Contact nguyen.van.a@example.com for details",
			want:    "[EMAIL]",
			notWant: "nguyen.van.a@example.com",
		},
		{
			name:    "card number",
			in:      "Card 4532 1234 5678 9012 was charged",
			want:    "[CARD]",
			notWant: "4532",
		},
		{
			name:    "card number dashed",
			in:      "Card 4532-1234-5678-9012 was charged",
			want:    "[CARD]",
			notWant: "9012",
		},
		{
			name:    "phone number",
			in:      "Call +84 912 345 678 for support",
			want:    "[PHONE]",
			notWant: "912 345",
		},
		{
			name:    "dotted phone number",
			in:      "Hotline 0901.234.567 ext 2",
			want:    "[PHONE]",
			notWant: "0901.234.567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Sanitize(%q) = %q, want substring %q", tt.in, got, tt.want)
			}
			if strings.Contains(got, tt.notWant) {
				t.Errorf("Sanitize(%q) = %q, leaked %q", tt.in, got, tt.notWant)
			}
		})
	}
}

func TestSanitize_KeepsDotGroupedAmounts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		keep string
	}{
		{
			name: "eight digit amount",
			in:   "Gia tri: 12.500.000 VND\nThoi gian: 28/08/2025 12:15",
			keep: "12.500.000",
		},
		{
			name: "ten digit amount",
			in:   "Value: 1.250.000.000 VND",
			keep: "1.250.000.000",
		},
		{
			name: "amount next to a phone",
			in:   "Gia tri: 12.500.000 VND. Hotline +84 912 345 678",
			keep: "12.500.000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if !strings.Contains(got, tt.keep) {
				t.Errorf("Sanitize(%q) = %q, lost amount %q", tt.in, got, tt.keep)
			}
			if strings.Contains(tt.in, "Hotline") && !strings.Contains(got, "[PHONE]") {
				t.Errorf("Sanitize(%q) = %q, phone not redacted", tt.in, got)
			}
		})
	}
}

func TestSanitize_StripsFooter(t *testing.T) {
	body := "Transaction completed at Highlands Coffee for 65,000 VND.\n" +
		strings.Repeat("Thank you for banking with us. ", 5) + "\n" +
		"If you no longer wish to receive these messages, unsubscribe here.\n" +
		"All rights reserved."

	got := Sanitize(body)

	if !strings.Contains(got, "Highlands Coffee") {
		t.Errorf("transaction text lost: %q", got)
	}
	if strings.Contains(got, "unsubscribe") || strings.Contains(got, "All rights reserved") {
		t.Errorf("footer not removed: %q", got)
	}
}

func TestSanitize_FooterPhraseInFirstHalfKept(t *testing.T) {
	// A legal-sounding phrase early in the body must not truncate it.
	body := "Your Privacy Policy Services subscription renewed for 120,000 VND. " +
		strings.Repeat("Details of the renewal follow in this message body. ", 10)

	got := Sanitize(body)
	if !strings.Contains(got, "120,000 VND") {
		t.Errorf("body truncated by early marker: %q", got)
	}
}

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	got := Sanitize("a   b\t\tc\n\n\n\n\nd")
	if strings.Contains(got, "  ") {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("blank lines not collapsed: %q", got)
	}
}

func TestSanitize_NeverPanicsOnMalformedInput(t *testing.T) {
	inputs := []string{
		"",
		"<div><p>unclosed",
		"<<<>>>",
		"<style>no close",
		strings.Repeat("<a href='x'>", 1000),
	}
	for _, in := range inputs {
		_ = Sanitize(in) // must not panic
	}
}

func TestTruncateForModel(t *testing.T) {
	long := strings.Repeat("x", ModelInputLimit+500)
	got := TruncateForModel(long)
	if len([]rune(got)) != ModelInputLimit {
		t.Errorf("len = %d, want %d", len([]rune(got)), ModelInputLimit)
	}

	short := "short body"
	if TruncateForModel(short) != short {
		t.Error("short input must be returned unchanged")
	}
}

func TestTruncateForModel_MultibyteSafe(t *testing.T) {
	long := strings.Repeat("đ", ModelInputLimit+10)
	got := TruncateForModel(long)
	if len([]rune(got)) != ModelInputLimit {
		t.Errorf("rune count = %d, want %d", len([]rune(got)), ModelInputLimit)
	}
	if strings.Contains(got, "�") {
		t.Error("truncation split a multibyte rune")
	}
}
