// Package mailbox reads transaction-notification emails from IMAP
// accounts. It is pure with respect to persistence: the already-seen
// UID set is injected by the caller and newly resolved UIDs are
// returned, never written by the reader itself. Server-side read flags
// are left untouched.
package mailbox

import (
	"time"

	"github.com/tqhuy/finfit/internal/extract"
)

// SearchWindow bounds each sync run to messages received in the last
// seven days.
const SearchWindow = 7 * 24 * time.Hour

// RawMessage is one message streamed out of a session fetch.
type RawMessage struct {
	UID      string
	Raw      []byte
	Received time.Time
}

// WatermarkSet is the set of "<account>:<uid>" keys already ingested.
type WatermarkSet map[string]struct{}

// WatermarkKey builds the set key for one message of one account.
func WatermarkKey(account, uid string) string {
	return account + ":" + uid
}

// Contains reports whether the message was already ingested.
func (s WatermarkSet) Contains(account, uid string) bool {
	_, ok := s[WatermarkKey(account, uid)]
	return ok
}

// Add records a message as ingested.
func (s WatermarkSet) Add(account, uid string) {
	s[WatermarkKey(account, uid)] = struct{}{}
}

// FetchResult is the outcome of syncing one mailbox. SeenUIDs lists
// every message whose ingestion attempt was resolved in this run
// (success, explicit skip, or unrecoverable parse failure) and is what
// the caller persists as the new watermark entries.
type FetchResult struct {
	Transactions []*extract.ParsedTransaction
	SeenUIDs     []string
}
