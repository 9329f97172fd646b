// Package authsync keeps the canonical session slot consistent across
// contexts.
//
// A Coordinator owns the slot for its context and reconciles it against two
// channels with partial failure modes: a broadcast bus reaching other
// contexts under the same origin, and a cross-origin cookie visible to the
// whole root-domain family. There is no central coordinator and no locking;
// every write is idempotent and last-writer-wins, so contexts converge
// eventually (within one polling interval of a successful propagation)
// rather than linearizably.
package authsync

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/louisbranch/sessionbridge/internal/authsync/broadcast"
	"github.com/louisbranch/sessionbridge/internal/authsync/cookiejar"
	"github.com/louisbranch/sessionbridge/internal/session/domain"
	"github.com/louisbranch/sessionbridge/internal/session/slot"
)

var tracer = otel.Tracer("github.com/louisbranch/sessionbridge/internal/authsync")

const (
	// DefaultPollInterval bounds staleness while keeping request volume low.
	DefaultPollInterval = 3 * time.Second
	// defaultVerifyDelay is how long a cookie write gets to settle before
	// the diagnostic read-back.
	defaultVerifyDelay = 200 * time.Millisecond
)

// Config describes a coordinator's environment.
type Config struct {
	// Hostname of the current context, used to derive the cookie's root
	// domain scope.
	Hostname string
	// SecureTransport marks the context as served over a secure channel;
	// the cookie carries the Secure attribute iff this is set.
	SecureTransport bool
	// PollInterval is the reconciliation cadence. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
	// VerifyDelay is the settle time before the post-write cookie
	// read-back. Zero means a 200ms default.
	VerifyDelay time.Duration
	// Logf receives background-pass diagnostics. Nil means log.Printf.
	Logf func(format string, args ...any)
}

// Coordinator reconciles the canonical slot against the cookie and other
// contexts. Construct it explicitly and own its lifecycle; Start and Stop
// are the only state transitions.
type Coordinator struct {
	slot         slot.Store
	jar          cookiejar.Jar
	bus          *broadcast.Bus
	cookieDomain string
	secure       bool
	interval     time.Duration
	verifyDelay  time.Duration
	logf         func(format string, args ...any)

	mu        sync.Mutex
	running   bool
	stopLoop  context.CancelFunc
	loopDone  chan struct{}
	mirror    domain.Token
	mirrorSet bool
}

// New creates a coordinator in the Idle state.
func New(slotStore slot.Store, jar cookiejar.Jar, bus *broadcast.Bus, cfg Config) *Coordinator {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	verifyDelay := cfg.VerifyDelay
	if verifyDelay <= 0 {
		verifyDelay = defaultVerifyDelay
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}

	return &Coordinator{
		slot:         slotStore,
		jar:          jar,
		bus:          bus,
		cookieDomain: RootDomain(cfg.Hostname),
		secure:       cfg.SecureTransport,
		interval:     interval,
		verifyDelay:  verifyDelay,
		logf:         logf,
	}
}

// Start transitions Idle -> Running: it subscribes to the broadcast bus,
// runs one immediate reconciliation pass, and begins the polling timer.
// Starting a running coordinator is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.running = true
	c.stopLoop = cancel
	c.loopDone = done
	c.mu.Unlock()

	var signals <-chan struct{}
	cancelSub := func() {}
	if c.bus != nil {
		signals, cancelSub = c.bus.Subscribe()
	}

	go func() {
		defer close(done)
		defer cancelSub()

		c.reconcile(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reconcile(ctx)
			case <-signals:
				c.reconcile(ctx)
			}
		}
	}()
}

// Stop transitions Running -> Idle. It cancels the timer and the broadcast
// subscription; I/O already in flight is not aborted, only its follow-up
// propagation is no longer scheduled. Stopping an idle coordinator is a
// no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.stopLoop
	done := c.loopDone
	c.stopLoop = nil
	c.loopDone = nil
	c.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the coordinator's polling loop is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// ForceSync runs one reconciliation pass immediately. Call sites that
// mutate the slot invoke it right after the write so propagation does not
// wait for the next timer tick; within the same context the pass is
// guaranteed to observe that write.
func (c *Coordinator) ForceSync(ctx context.Context) {
	c.reconcile(ctx)
}

// InstallToken writes a token into the canonical slot and propagates it
// immediately. It is the single entry point for login and account-switch
// call sites.
func (c *Coordinator) InstallToken(ctx context.Context, token domain.Token) error {
	normalized, err := domain.Normalize(token)
	if err != nil {
		return err
	}
	if err := c.slot.Save(ctx, normalized); err != nil {
		return err
	}
	c.reconcile(ctx)
	return nil
}

// ClearToken empties the canonical slot (logout) and propagates the
// clearing immediately.
func (c *Coordinator) ClearToken(ctx context.Context) error {
	if err := c.slot.Clear(ctx); err != nil {
		return err
	}
	c.reconcile(ctx)
	return nil
}

// CookieDomain returns the root-domain scope applied to cookie writes.
func (c *Coordinator) CookieDomain() string {
	return c.cookieDomain
}

// reconcile is one pass: read the slot, compare to the last-observed
// mirror, and propagate on change. The common case is "nothing changed"
// and must stay cheap. Failures are logged and retried on the next tick;
// the pass never panics and never returns an error to the loop.
func (c *Coordinator) reconcile(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "sync.reconcile")
	defer span.End()

	token, filled, err := c.slot.Load(ctx)
	if err != nil {
		c.logf("sync: read canonical slot: %v", err)
		return
	}

	c.mu.Lock()
	changed := filled != c.mirrorSet || (filled && !token.Equal(c.mirror))
	if changed {
		c.mirror = token
		c.mirrorSet = filled
	}
	c.mu.Unlock()

	if changed {
		c.propagate(ctx, token, filled)
		return
	}

	c.adoptCookie(ctx, token, filled)
}

// propagate mirrors a detected slot change into the cookie and tells other
// contexts to re-reconcile.
func (c *Coordinator) propagate(ctx context.Context, token domain.Token, filled bool) {
	if filled {
		value, err := EncodeToken(token)
		if err != nil {
			c.logf("sync: encode session cookie: %v", err)
			return
		}
		c.writeCookie(ctx, cookiejar.Live(value, c.cookieDomain, c.secure))
	} else {
		c.writeCookie(ctx, cookiejar.Expired(c.cookieDomain, c.secure))
	}

	if c.bus != nil {
		c.bus.Notify()
	}
}

// adoptCookie converges the local slot toward a cookie written by another
// origin in the family. An absent cookie carries no signal: it is
// indistinguishable from blocked cookie writes, so only a present, differing
// token is adopted.
func (c *Coordinator) adoptCookie(ctx context.Context, token domain.Token, filled bool) {
	cookie, ok, err := c.jar.Get(ctx, cookiejar.Name)
	if err != nil {
		c.logf("sync: read session cookie: %v", err)
		return
	}
	if !ok || cookie.Value == "" {
		return
	}

	remote, err := DecodeToken(cookie.Value)
	if err != nil {
		c.logf("sync: decode session cookie: %v", err)
		return
	}
	if filled && remote.Equal(token) {
		return
	}

	if err := c.slot.Save(ctx, remote); err != nil {
		c.logf("sync: adopt session cookie: %v", err)
		return
	}

	c.mu.Lock()
	c.mirror = remote
	c.mirrorSet = true
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.Notify()
	}
}

// writeCookie sets the cookie and, after a short settle delay, reads the
// jar back and logs whether the write took effect. The read-back is a
// diagnostic, not a retry: a dropped write here is almost always platform
// policy (third-party cookie blocking) that retrying cannot fix.
func (c *Coordinator) writeCookie(ctx context.Context, cookie *http.Cookie) {
	if err := c.jar.Set(ctx, cookie); err != nil {
		c.logf("sync: write session cookie: %v", err)
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(c.verifyDelay):
	}

	stored, ok, err := c.jar.Get(ctx, cookie.Name)
	if err != nil {
		c.logf("sync: verify session cookie: %v", err)
		return
	}
	if cookie.MaxAge < 0 {
		if ok {
			c.logf("sync: session cookie still present after clearing")
		}
		return
	}
	if !ok || stored.Value != cookie.Value {
		c.logf("sync: session cookie write did not take effect (platform policy?)")
	}
}

// CheckCookieSupport sets and reads back a throwaway cookie with relaxed
// attributes. It distinguishes "this platform blocks the cookies this
// subsystem needs" from other failure causes, for user-facing diagnostics
// only; no control flow depends on it.
func (c *Coordinator) CheckCookieSupport(ctx context.Context) bool {
	probe := &http.Cookie{
		Name:     "bridge_probe",
		Value:    "1",
		Path:     "/",
		MaxAge:   60,
		SameSite: http.SameSiteLaxMode,
	}
	if err := c.jar.Set(ctx, probe); err != nil {
		return false
	}
	_, ok, err := c.jar.Get(ctx, probe.Name)
	if err != nil || !ok {
		return false
	}
	probe.MaxAge = -1
	_ = c.jar.Set(ctx, probe)
	return true
}
