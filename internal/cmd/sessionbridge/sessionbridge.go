// Package sessionbridge parses daemon flags and launches the session
// bridge runtime: the credential vault plus the sync coordinator that
// keeps every local context converged on one session.
package sessionbridge

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/louisbranch/sessionbridge/internal/authsync"
	"github.com/louisbranch/sessionbridge/internal/authsync/broadcast"
	"github.com/louisbranch/sessionbridge/internal/authsync/cookiejar"
	"github.com/louisbranch/sessionbridge/internal/device"
	entrypoint "github.com/louisbranch/sessionbridge/internal/platform/cmd"
	"github.com/louisbranch/sessionbridge/internal/session/slot"
	"github.com/louisbranch/sessionbridge/internal/vault/service"
	"github.com/louisbranch/sessionbridge/internal/vault/storage/sqlite"
)

// Config holds session bridge daemon configuration.
type Config struct {
	DBPath          string        `env:"SESSIONBRIDGE_DB_PATH" envDefault:"data/vault.db"`
	SlotPath        string        `env:"SESSIONBRIDGE_SLOT_PATH" envDefault:"data/slot.json"`
	CookiePath      string        `env:"SESSIONBRIDGE_COOKIE_PATH" envDefault:"data/cookies.json"`
	Hostname        string        `env:"SESSIONBRIDGE_HOSTNAME"`
	SecureTransport bool          `env:"SESSIONBRIDGE_SECURE" envDefault:"false"`
	PollInterval    time.Duration `env:"SESSIONBRIDGE_POLL_INTERVAL" envDefault:"3s"`
	CleanupInterval time.Duration `env:"SESSIONBRIDGE_CLEANUP_INTERVAL" envDefault:"1h"`
	SessionMaxAge   time.Duration `env:"SESSIONBRIDGE_SESSION_MAX_AGE" envDefault:"720h"`
}

const defaultCleanupInterval = time.Hour

// cleanupEvery returns the stale session sweep interval, falling back to
// the default when the configured value is not positive.
func (c Config) cleanupEvery() time.Duration {
	if c.CleanupInterval <= 0 {
		return defaultCleanupInterval
	}
	return c.CleanupInterval
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The vault SQLite database path")
	fs.StringVar(&cfg.SlotPath, "slot-path", cfg.SlotPath, "The canonical session slot file path")
	fs.StringVar(&cfg.CookiePath, "cookie-path", cfg.CookiePath, "The shared cookie jar file path")
	fs.StringVar(&cfg.Hostname, "hostname", cfg.Hostname, "Hostname used to derive the cookie domain (defaults to the OS hostname)")
	fs.BoolVar(&cfg.SecureTransport, "secure", cfg.SecureTransport, "Mark session cookies Secure")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Session reconciliation poll interval")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "Stale session sweep interval")
	fs.DurationVar(&cfg.SessionMaxAge, "session-max-age", cfg.SessionMaxAge, "Age after which unused stored sessions are deactivated")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the session bridge runtime and blocks until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBridge, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close vault store: %v", err)
			}
		}()

		slotStore, err := slot.NewFile(cfg.SlotPath)
		if err != nil {
			return err
		}
		jar, err := cookiejar.NewFile(cfg.CookiePath)
		if err != nil {
			return err
		}

		hostname := cfg.Hostname
		if hostname == "" {
			hostname, err = os.Hostname()
			if err != nil {
				return err
			}
		}

		coordinator := authsync.New(slotStore, jar, broadcast.NewBus(), authsync.Config{
			Hostname:        hostname,
			SecureTransport: cfg.SecureTransport,
			PollInterval:    cfg.PollInterval,
		})
		vault := service.New(service.Stores{Accounts: store, Sessions: store}, coordinator)

		fingerprint := device.Fingerprint(device.Collect())
		log.Printf("session bridge starting: device %s, cookie domain %q", fingerprint, coordinator.CookieDomain())
		if !coordinator.CheckCookieSupport(ctx) {
			log.Printf("cookie jar rejected a probe write; cross-context propagation may be unavailable")
		}

		coordinator.Start()
		defer coordinator.Stop()

		cleanup := time.NewTicker(cfg.cleanupEvery())
		defer cleanup.Stop()
		vault.CleanupExpiredSessions(ctx, fingerprint, cfg.SessionMaxAge)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-cleanup.C:
				vault.CleanupExpiredSessions(ctx, fingerprint, cfg.SessionMaxAge)
			}
		}
	})
}
