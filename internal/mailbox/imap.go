package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/tqhuy/finfit/internal/config"
)

// connectTimeout is generous on purpose: the caller is typically a
// cold-started serverless invocation.
const connectTimeout = 30 * time.Second

// IMAPSession implements Session over go-imap. The inbox is opened
// read-only and bodies are fetched with PEEK, so the server never sees
// a \Seen flag change from us.
type IMAPSession struct {
	cfg    config.MailboxConfig
	client *imapclient.Client
	stateMachine
}

// NewIMAPSession creates a session for one configured mailbox.
func NewIMAPSession(cfg config.MailboxConfig) *IMAPSession {
	return &IMAPSession{cfg: cfg}
}

func (s *IMAPSession) Connect(ctx context.Context) error {
	if err := s.transition(StateDisconnected, StateConnected); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: connectTimeout}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.TLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		s.force(StateDisconnected)
		return fmt.Errorf("Connect: dialing %s: %w", addr, err)
	}

	s.client = imapclient.New(conn, nil)

	if err := s.client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = s.client.Close()
		s.force(StateDisconnected)
		return fmt.Errorf("Connect: login %s: %w", s.cfg.Username, err)
	}

	return nil
}

func (s *IMAPSession) Open(ctx context.Context) error {
	if err := s.transition(StateConnected, StateMailboxOpen); err != nil {
		return err
	}

	if _, err := s.client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("Open: selecting INBOX: %w", err)
	}
	return nil
}

func (s *IMAPSession) Search(ctx context.Context, since time.Time, senders []string) ([]string, error) {
	if err := s.transition(StateMailboxOpen, StateSearching); err != nil {
		return nil, err
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("Search: no trusted senders configured")
	}

	criteria := senderCriteria(senders)
	criteria.Since = since

	data, err := s.client.UIDSearch(&criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("Search: uid search: %w", err)
	}

	uids := make([]string, 0, len(data.AllUIDs()))
	for _, uid := range data.AllUIDs() {
		uids = append(uids, strconv.FormatUint(uint64(uid), 10))
	}
	return uids, nil
}

func (s *IMAPSession) Fetch(ctx context.Context, uids []string, fn func(RawMessage)) error {
	if err := s.transition(StateSearching, StateFetching); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	var uidSet imap.UIDSet
	for _, u := range uids {
		n, err := strconv.ParseUint(u, 10, 32)
		if err != nil {
			return fmt.Errorf("Fetch: bad uid %q: %w", u, err)
		}
		uidSet.AddNum(imap.UID(n))
	}

	// PEEK keeps the server-side read state untouched.
	section := &imap.FetchItemBodySection{Peek: true}
	opts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}

	cmd := s.client.Fetch(uidSet, opts)
	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			// The message stays unresolved and is retried next run.
			continue
		}
		fn(RawMessage{
			UID:      strconv.FormatUint(uint64(buf.UID), 10),
			Raw:      buf.FindBodySection(section),
			Received: buf.InternalDate,
		})
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("Fetch: closing fetch: %w", err)
	}
	return nil
}

func (s *IMAPSession) Close() error {
	s.force(StateClosing)
	defer s.force(StateDisconnected)

	if s.client == nil {
		return nil
	}
	if err := s.client.Logout().Wait(); err != nil {
		return s.client.Close()
	}
	return s.client.Close()
}

// senderCriteria builds an OR tree across the trusted sender list.
// All other criteria fields AND against it.
func senderCriteria(senders []string) imap.SearchCriteria {
	c := fromCriteria(senders[0])
	for _, addr := range senders[1:] {
		c = imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{c, fromCriteria(addr)}}}
	}
	return c
}

func fromCriteria(addr string) imap.SearchCriteria {
	return imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: addr}},
	}
}
