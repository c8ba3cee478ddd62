package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mnako/letters"
	"github.com/rs/zerolog"

	"github.com/tqhuy/finfit/internal/config"
	"github.com/tqhuy/finfit/internal/extract"
)

// SessionFactory opens a session for one mailbox. Tests inject fakes here.
type SessionFactory func(cfg config.MailboxConfig) Session

// MessageArchiver stores raw messages for auditing. Failures are
// logged and never affect the sync outcome.
type MessageArchiver interface {
	ArchiveEmail(ctx context.Context, account, uid string, raw []byte) error
}

// Reader pulls recent messages out of one mailbox and turns them into
// transactions. It never persists anything itself: the caller hands in the
// already-processed watermark set and stores the returned SeenUIDs.
type Reader struct {
	extractor  *extract.Extractor
	newSession SessionFactory
	archiver   MessageArchiver
	log        zerolog.Logger
}

func NewReader(extractor *extract.Extractor, factory SessionFactory, log zerolog.Logger) *Reader {
	if factory == nil {
		factory = func(cfg config.MailboxConfig) Session { return NewIMAPSession(cfg) }
	}
	return &Reader{extractor: extractor, newSession: factory, log: log}
}

// WithArchiver makes the reader archive every fetched message.
func (r *Reader) WithArchiver(a MessageArchiver) *Reader {
	r.archiver = a
	return r
}

// FetchNew connects, searches the last SearchWindow for trusted senders,
// drops UIDs already in seen, and parses the rest concurrently. Every
// message that reached a terminal outcome (transaction, deliberate skip,
// or unparseable content) is reported in SeenUIDs so it is never fetched
// again. Messages lost to transport errors are left out and retried on
// the next run.
func (r *Reader) FetchNew(ctx context.Context, cfg config.MailboxConfig, seen WatermarkSet) (*FetchResult, error) {
	session := r.newSession(cfg)

	if err := session.Connect(ctx); err != nil {
		return nil, fmt.Errorf("FetchNew: %w", err)
	}
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return nil, fmt.Errorf("FetchNew: %w", err)
	}

	since := time.Now().Add(-SearchWindow)
	uids, err := session.Search(ctx, since, cfg.TrustedSenders)
	if err != nil {
		return nil, fmt.Errorf("FetchNew: %w", err)
	}

	fresh := make([]string, 0, len(uids))
	for _, uid := range uids {
		if seen.Contains(cfg.Username, uid) {
			continue
		}
		fresh = append(fresh, uid)
	}

	r.log.Info().
		Str("account", cfg.Username).
		Int("matched", len(uids)).
		Int("new", len(fresh)).
		Msg("mailbox search complete")

	result := &FetchResult{}
	if len(fresh) == 0 {
		return result, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	err = session.Fetch(ctx, fresh, func(msg RawMessage) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, resolved := r.processMessage(ctx, cfg, msg)
			mu.Lock()
			defer mu.Unlock()
			if tx != nil {
				result.Transactions = append(result.Transactions, tx)
			}
			if resolved {
				result.SeenUIDs = append(result.SeenUIDs, msg.UID)
			}
		}()
	})
	// Every in-flight message settles before the session goes away.
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("FetchNew: %w", err)
	}
	return result, nil
}

// processMessage parses one raw message. The second return reports whether
// the message reached a terminal outcome and should be watermarked.
func (r *Reader) processMessage(ctx context.Context, cfg config.MailboxConfig, msg RawMessage) (*extract.ParsedTransaction, bool) {
	if r.archiver != nil {
		if err := r.archiver.ArchiveEmail(ctx, cfg.Username, msg.UID, msg.Raw); err != nil {
			r.log.Warn().
				Str("account", cfg.Username).
				Str("uid", msg.UID).
				Err(err).
				Msg("failed to archive raw email")
		}
	}

	email, err := letters.ParseEmail(bytes.NewReader(msg.Raw))
	if err != nil {
		r.log.Warn().
			Str("account", cfg.Username).
			Str("uid", msg.UID).
			Err(err).
			Msg("unparseable message, watermarking")
		return nil, true
	}

	sender := ""
	if len(email.Headers.From) > 0 {
		sender = email.Headers.From[0].Address
	}
	if !senderTrusted(sender, cfg.TrustedSenders) {
		r.log.Warn().
			Str("account", cfg.Username).
			Str("uid", msg.UID).
			Str("sender", sender).
			Msg("sender not in trusted list, discarding")
		return nil, true
	}

	body := email.HTML
	if body == "" {
		body = email.Text
	}
	received := email.Headers.Date
	if received.IsZero() {
		received = msg.Received
	}

	tx := r.extractor.ParseEmail(ctx, sender, email.Headers.Subject, body, received)
	if tx != nil {
		tx.EmailUID = msg.UID
		tx.EmailAccount = cfg.Username
	}
	return tx, true
}

// senderTrusted accepts an exact address match or, for entries starting
// with "@", a domain suffix match. Comparison is case-insensitive.
func senderTrusted(sender string, trusted []string) bool {
	s := strings.ToLower(strings.TrimSpace(sender))
	if s == "" {
		return false
	}
	for _, t := range trusted {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "@") {
			if strings.HasSuffix(s, t) {
				return true
			}
			continue
		}
		if s == t {
			return true
		}
	}
	return false
}
