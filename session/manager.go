// Package session owns the client-side credential lifecycle: scheduled and
// on-demand refresh against the identity provider, expiry introspection,
// replicated persistence, and escalation to sign-out when the identity
// session itself is no longer valid.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/servio/clientcore/credstore"
	"github.com/servio/clientcore/internal/clock"
	errs "github.com/servio/clientcore/internal/errors"
	"github.com/servio/clientcore/internal/metrics"
)

const defaultRefreshInterval = 50 * time.Minute

// Manager keeps the bearer credential fresh. Construct exactly one per
// application and inject it into every consumer; there is no package-level
// instance.
type Manager struct {
	issuer   Issuer
	store    *credstore.Store
	clk      clock.Clock
	interval time.Duration
	metrics  *metrics.Collector

	group singleflight.Group

	lock       sync.Mutex
	refreshing bool
	active     bool
	timers     []clock.Timer

	signedOut   chan struct{}
	signOutOnce sync.Once
	onSignOut   func()
}

// Option modifies a Manager at construction time.
type Option func(*Manager)

// WithClock injects a clock, primarily for testing.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

// WithRefreshInterval overrides the scheduled refresh cadence.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

// WithOnSignOut registers a callback fired exactly once when the session
// becomes terminally unauthenticated. Navigation to a sign-in surface is
// the caller's concern.
func WithOnSignOut(fn func()) Option {
	return func(m *Manager) { m.onSignOut = fn }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// New creates a Manager with required dependencies.
func New(issuer Issuer, store *credstore.Store, options ...Option) (*Manager, error) {
	if issuer == nil {
		return nil, errors.New("[session.New] issuer is required")
	}
	if store == nil {
		return nil, errors.New("[session.New] store is required")
	}

	m := &Manager{
		issuer:    issuer,
		store:     store,
		clk:       clock.New(),
		interval:  defaultRefreshInterval,
		active:    true,
		signedOut: make(chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Initialize performs one immediate forced refresh and schedules a
// recurring refresh. Calling it twice double-schedules; once-per-session
// is the caller's responsibility.
func (m *Manager) Initialize(ctx context.Context) error {
	_, err := m.Refresh(ctx)
	m.scheduleNext()
	return err
}

// Stop cancels all scheduled refreshes. Safe to call when never
// initialized. A refresh already in flight is allowed to finish but its
// result is discarded.
func (m *Manager) Stop() {
	m.deactivate()
}

// Refresh obtains a fresh credential and writes it to every replicated
// store location. Concurrent callers share a single in-flight request and
// its result.
func (m *Manager) Refresh(ctx context.Context) (*Credential, error) {
	result, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Credential), nil
}

// TryRefresh is the non-blocking variant: when a refresh is already in
// flight it returns ErrRefreshInProgress instead of waiting for the shared
// result. Used by diagnostics surfaces that must not block.
func (m *Manager) TryRefresh(ctx context.Context) (*Credential, error) {
	if m.isRefreshing() {
		return nil, errs.ErrRefreshInProgress
	}
	return m.Refresh(ctx)
}

func (m *Manager) doRefresh(ctx context.Context) (*Credential, error) {
	m.setRefreshing(true)
	defer m.setRefreshing(false)

	credential, err := m.issuer.Issue(ctx)
	if err != nil {
		if errs.Is(err, errs.ErrInvalidSession) {
			if m.metrics != nil {
				m.metrics.RecordRefreshFailure("invalid_session")
			}
			log.Err(err).Msg("Identity session invalid, signing out")
			m.HandleAuthFailure()
			return nil, err
		}
		if m.metrics != nil {
			m.metrics.RecordRefreshFailure("transient")
		}
		return nil, errs.Wrapf(errs.ErrTransientRefresh, "requesting credential (%v)", err)
	}

	// A refresh that lands after Stop must not resurrect the session.
	if !m.isActive() {
		return nil, errs.ErrSessionStopped
	}

	if err := m.store.SetCredential(credential.Token); err != nil {
		return nil, errors.Wrap(err, "[Manager.Refresh] storing credential")
	}
	if m.metrics != nil {
		m.metrics.RecordRefreshSuccess()
	}
	return credential, nil
}

// HandleAuthFailure clears every replicated store location and signals the
// terminal sign-out exactly once.
func (m *Manager) HandleAuthFailure() {
	if err := m.store.ClearSession(); err != nil {
		log.Err(err).Msg("Failed to clear replicated session state")
	}
	m.deactivate()
	m.signOutOnce.Do(func() {
		close(m.signedOut)
		if m.onSignOut != nil {
			m.onSignOut()
		}
	})
}

// SignedOut is closed when the session becomes terminally
// unauthenticated.
func (m *Manager) SignedOut() <-chan struct{} {
	return m.signedOut
}

// Status introspects the locally stored credential. No network call.
func (m *Manager) Status() Status {
	raw, err := m.store.Credential()
	if err != nil {
		return Status{}
	}
	return Introspect(raw, m.clk.Now())
}

// Token returns the currently stored credential, or "" when none exists.
// All credential writes go through Refresh; callers only read.
func (m *Manager) Token() string {
	raw, err := m.store.Credential()
	if err != nil {
		return ""
	}
	return raw
}

func (m *Manager) scheduleNext() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.active {
		return
	}
	t := m.clk.AfterFunc(m.interval, func() {
		if _, err := m.Refresh(context.Background()); err != nil {
			log.Err(err).Msg("Scheduled credential refresh failed")
		}
		m.scheduleNext()
	})
	m.timers = append(m.timers, t)
}

func (m *Manager) deactivate() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.active = false
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}

func (m *Manager) isActive() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.active
}

func (m *Manager) setRefreshing(v bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.refreshing = v
}

func (m *Manager) isRefreshing() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.refreshing
}
