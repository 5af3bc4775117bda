package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/lakeoracle/oracle/lake/pkg/querier"
)

const (
	AccountsEnvVar       = "POSTGRES_ACCOUNTS"
	defaultSchema        = "main"
	defaultShutdown      = 10 * time.Second
	defaultReadHeaderTTL = 30 * time.Second
)

type Config struct {
	HTTPListener      net.Listener
	PostgresListener  net.Listener // optional
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	QuerierConfig     querier.Config

	// DefaultSchema is the schema client catalog introspection is rewritten against.
	DefaultSchema string

	// PostgresAccounts maps username to password. Empty disables authentication.
	PostgresAccounts map[string]string
}

// LoadFromEnv merges accounts from POSTGRES_ACCOUNTS ("user1:pass1,user2:pass2").
func (cfg *Config) LoadFromEnv() error {
	accounts, err := ParseAccounts(os.Getenv(AccountsEnvVar))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", AccountsEnvVar, err)
	}
	if cfg.PostgresAccounts == nil {
		cfg.PostgresAccounts = make(map[string]string, len(accounts))
	}
	for user, pass := range accounts {
		cfg.PostgresAccounts[user] = pass
	}
	return nil
}

// ParseAccounts parses comma-separated username:password pairs.
func ParseAccounts(s string) (map[string]string, error) {
	accounts := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("account %q: expected username:password", entry)
		}
		user = strings.TrimSpace(user)
		if user == "" {
			return nil, fmt.Errorf("account %q: empty username", entry)
		}
		accounts[user] = strings.TrimSpace(pass)
	}
	return accounts, nil
}

func (cfg *Config) Validate() error {
	if cfg.HTTPListener == nil {
		return errors.New("http listener is required")
	}
	if err := cfg.QuerierConfig.Validate(); err != nil {
		return err
	}
	if cfg.DefaultSchema == "" {
		cfg.DefaultSchema = defaultSchema
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdown
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTTL
	}
	return nil
}
