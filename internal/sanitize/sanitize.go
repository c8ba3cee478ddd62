// Package sanitize prepares raw notification-email bodies for the
// structured extractors. HTML is flattened to text, PII is replaced
// with placeholder tokens before anything is sent to a third-party
// model, and trailing footer boilerplate is removed.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
)

// ModelInputLimit bounds how much sanitized text is handed to the LLM
// extractor. The pattern extractors always see the full sanitized body.
const ModelInputLimit = 1000

var (
	styleScriptRe = regexp.MustCompile(`(?is)<(style|script)\b[^>]*>.*?</(style|script)\s*>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	entityRe      = regexp.MustCompile(`&(nbsp|amp|lt|gt|quot|#\d+);`)

	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// 12 to 16 digits, optionally separated by spaces or dashes.
	cardRe = regexp.MustCompile(`\b\d(?:[ -]?\d){11,15}\b`)
	// Phone-like runs of 8 to 11 digits with an optional leading +.
	phoneRe = regexp.MustCompile(`\+?\b\d(?:[ .\-]?\d){7,10}\b`)
	// Vietnamese amounts group thousands with dots ("12.500.000 VND");
	// such runs are money, not phone numbers. Space-grouped runs stay
	// redacted since phones are written the same way.
	thousandsGroupRe = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)

	whitespaceRe = regexp.MustCompile(`[ \t\r\f]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// footerMarkers start known unsubscribe/legal boilerplate. Everything
// from the first marker found in the second half of the body onward is
// dropped.
var footerMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`(?i)this is an automated (?:e-?mail|message)`),
	regexp.MustCompile(`(?i)do not reply to this (?:e-?mail|message)`),
	regexp.MustCompile(`(?i)terms (?:of service|and conditions)`),
	regexp.MustCompile(`(?i)privacy policy`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)©\s*\d{4}`),
}

// Sanitize turns a raw HTML or plain-text email body into redacted
// plain text. It never fails: anything the patterns do not match is
// left as-is.
func Sanitize(raw string) string {
	s := stripHTML(raw)
	s = redactPII(s)
	s = stripFooter(s)
	return collapseWhitespace(s)
}

// TruncateForModel bounds sanitized text to ModelInputLimit runes.
func TruncateForModel(s string) string {
	runes := []rune(s)
	if len(runes) <= ModelInputLimit {
		return s
	}
	return string(runes[:ModelInputLimit])
}

func stripHTML(raw string) string {
	s := styleScriptRe.ReplaceAllString(raw, " ")
	if !strings.Contains(s, "<") {
		return s
	}
	text, err := html2text.FromString(s, html2text.Options{TextOnly: true})
	if err != nil {
		// html2text chokes on some malformed markup; fall back to a
		// plain tag strip so sanitization still cannot fail.
		text = tagRe.ReplaceAllString(s, " ")
		text = entityRe.ReplaceAllString(text, " ")
	}
	return text
}

func redactPII(s string) string {
	s = emailRe.ReplaceAllString(s, "[EMAIL]")
	s = cardRe.ReplaceAllString(s, "[CARD]")
	s = phoneRe.ReplaceAllStringFunc(s, func(m string) string {
		if thousandsGroupRe.MatchString(m) {
			return m
		}
		return "[PHONE]"
	})
	return s
}

func stripFooter(s string) string {
	// Only cut in the second half so a legal-sounding phrase inside the
	// actual transaction text cannot truncate the body.
	cut := len(s)
	half := len(s) / 2
	for _, re := range footerMarkers {
		if loc := re.FindStringIndex(s[half:]); loc != nil && half+loc[0] < cut {
			cut = half + loc[0]
		}
	}
	return s[:cut]
}

func collapseWhitespace(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
