package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// MailboxConfig describes one IMAP account the sync run reads from.
// TrustedSenders is the allow-list of From addresses; mail from anyone
// else is discarded even when it matches the server-side search.
type MailboxConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	Username       string   `json:"username"`
	Password       string   `json:"password"`
	TLS            bool     `json:"tls"`
	TrustedSenders []string `json:"trusted_senders"`
}

// Config holds all runtime configuration for the service.
type Config struct {
	// BigQuery
	ProjectID string
	DatasetID string

	// GCS bucket for the raw-email audit archive. Empty disables archiving.
	ArchiveBucket string

	// Gemini credential. Empty means the LLM extraction path and the
	// nutrition estimator are unavailable and the service degrades to
	// the pattern extractors / skips meal derivation.
	GeminiAPIKey string

	// Notion export (cmd/sync-notion only)
	NotionToken      string
	NotionDatabaseID string

	// Mailboxes to sync, parsed from the FINFIT_MAILBOXES JSON array.
	Mailboxes []MailboxConfig

	// UserID stamped on every persisted expense and meal.
	UserID string

	// HTTP
	Port string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; a missing file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ProjectID:        os.Getenv("FINFIT_BQ_PROJECT"),
		DatasetID:        getenvDefault("FINFIT_BQ_DATASET", "finfit"),
		ArchiveBucket:    os.Getenv("FINFIT_ARCHIVE_BUCKET"),
		GeminiAPIKey:     geminiKey(),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		UserID:           getenvDefault("FINFIT_USER_ID", "default"),
		Port:             getenvDefault("PORT", "8080"),
	}

	if raw := strings.TrimSpace(os.Getenv("FINFIT_MAILBOXES")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Mailboxes); err != nil {
			return nil, fmt.Errorf("config: parsing FINFIT_MAILBOXES: %w", err)
		}
	}

	for i := range cfg.Mailboxes {
		mb := &cfg.Mailboxes[i]
		if mb.Port == 0 {
			mb.Port = 993
			mb.TLS = true
		}
		if mb.Host == "" || mb.Username == "" {
			return nil, fmt.Errorf("config: mailbox %d is missing host or username", i)
		}
	}

	return cfg, nil
}

// HasLLM reports whether the Gemini extraction path is configured.
func (c *Config) HasLLM() bool {
	return c.GeminiAPIKey != ""
}

func geminiKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
