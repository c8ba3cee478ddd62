package extract

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tqhuy/finfit/internal/sanitize"
)

// Extractor dispatches between the LLM strategy and the per-sender
// pattern parsers. The LLM path is tried first when configured; a
// deliberate skip from the model is terminal, while an LLM failure
// falls back to whichever pattern parser claims the sender.
type Extractor struct {
	llm      LLMStrategy
	patterns []patternParser
	log      zerolog.Logger
}

// New builds an Extractor. llm may be nil when no model credential is
// configured; the dispatcher then goes straight to the pattern parsers.
func New(llm LLMStrategy, log zerolog.Logger) *Extractor {
	return &Extractor{
		llm:      llm,
		patterns: []patternParser{&bankParser{}, &rideParser{}},
		log:      log,
	}
}

// ParseEmail sanitizes the raw body and runs the extraction strategies
// in order. It returns nil when no strategy produces a transaction; no
// error and no panic ever escapes, whatever the input looks like.
func (e *Extractor) ParseEmail(ctx context.Context, sender, subject, rawBody string, received time.Time) *ParsedTransaction {
	body := sanitize.Sanitize(rawBody)

	if e.llm != nil {
		tx, err := e.llm.Extract(ctx, subject, body, received)
		if err == nil && tx != nil {
			tx.EmailSubject = subject
			return tx
		}
		if errors.Is(err, ErrSkip) {
			e.log.Debug().Str("subject", subject).Msg("Model skipped message as non-transaction")
			return nil
		}
		if err != nil {
			e.log.Debug().Err(err).Str("subject", subject).Msg("LLM extraction failed, trying pattern parsers")
		}
	}

	for _, p := range e.patterns {
		if !p.Matches(sender, subject, body) {
			continue
		}
		tx := p.Parse(subject, body, received)
		if tx == nil {
			e.log.Debug().Str("parser", p.Name()).Str("subject", subject).Msg("Pattern parser found no transaction")
			return nil
		}
		tx.EmailSubject = subject
		return tx
	}

	return nil
}
