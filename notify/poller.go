package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/servio/clientcore/internal/clock"
	errs "github.com/servio/clientcore/internal/errors"
	"github.com/servio/clientcore/internal/metrics"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultPollLimit    = 10
	defaultStagger      = 500 * time.Millisecond
)

// Sink receives the records a poll delivers, one at a time.
type Sink interface {
	Add(record Record)
}

// Lister is the slice of the notifications API the poller needs.
type Lister interface {
	ListUnread(ctx context.Context, limit int) ([]Record, error)
}

// Poller periodically fetches unread notifications, computes the delta
// past a cursor, and hands new records to the sink in priority order with
// a fixed stagger between deliveries. Ticks are re-armed only after the
// previous fetch settles, so they never overlap.
type Poller struct {
	lister     Lister
	sink       Sink
	visible    func() bool
	observer   func(Record)
	onCheck    func(ctx context.Context)
	stopSignal <-chan struct{}
	clk        clock.Clock
	metrics    *metrics.Collector
	interval   time.Duration
	limit      int
	stagger    time.Duration

	lock    sync.Mutex
	cursor  string
	active  bool
	started bool
	timers  []clock.Timer
}

// PollerOption modifies a Poller at construction time.
type PollerOption func(*Poller)

// WithClock injects a clock, primarily for testing.
func WithClock(clk clock.Clock) PollerOption {
	return func(p *Poller) { p.clk = clk }
}

// WithInterval overrides the poll cadence.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = d }
}

// WithLimit overrides how many unread records one poll fetches.
func WithLimit(n int) PollerOption {
	return func(p *Poller) { p.limit = n }
}

// WithStagger overrides the delay between successive sink deliveries.
func WithStagger(d time.Duration) PollerOption {
	return func(p *Poller) { p.stagger = d }
}

// WithVisibility gates each tick on a host-visibility signal. A tick that
// lands while the surface is hidden is skipped outright, not queued.
func WithVisibility(fn func() bool) PollerOption {
	return func(p *Poller) { p.visible = fn }
}

// WithObserver registers a callback invoked immediately for every new
// record a poll finds, independent of the staggered sink delivery. The
// read-state aggregator hangs off this.
func WithObserver(fn func(Record)) PollerOption {
	return func(p *Poller) { p.observer = fn }
}

// WithOnExplicitCheck registers a callback fired by CheckNow, e.g. to
// resynchronize the unread count when the user opens the bell.
func WithOnExplicitCheck(fn func(ctx context.Context)) PollerOption {
	return func(p *Poller) { p.onCheck = fn }
}

// WithStopSignal stops the poller when ch is closed, e.g. the session
// manager's SignedOut channel.
func WithStopSignal(ch <-chan struct{}) PollerOption {
	return func(p *Poller) { p.stopSignal = ch }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) PollerOption {
	return func(p *Poller) { p.metrics = c }
}

// NewPoller creates a Poller with required dependencies.
func NewPoller(lister Lister, sink Sink, options ...PollerOption) (*Poller, error) {
	if lister == nil {
		return nil, errors.New("[notify.NewPoller] lister is required")
	}
	if sink == nil {
		return nil, errors.New("[notify.NewPoller] sink is required")
	}

	p := &Poller{
		lister:   lister,
		sink:     sink,
		clk:      clock.New(),
		interval: defaultPollInterval,
		limit:    defaultPollLimit,
		stagger:  defaultStagger,
		active:   true,
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// Start performs one immediate poll and schedules polling at the
// configured interval. Subsequent calls are no-ops.
func (p *Poller) Start(ctx context.Context) {
	p.lock.Lock()
	if p.started {
		p.lock.Unlock()
		return
	}
	p.started = true
	p.lock.Unlock()

	if p.stopSignal != nil {
		go func() {
			<-p.stopSignal
			p.Stop()
		}()
	}

	p.tick(ctx)
}

// Stop cancels all scheduled ticks and pending staggered deliveries. An
// in-flight fetch may complete but its results are discarded.
func (p *Poller) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.active = false
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
}

// Poll runs a single fetch-and-deliver cycle. On fetch failure the cursor
// is left unchanged and the error wraps errs.ErrPollFetch.
func (p *Poller) Poll(ctx context.Context) error {
	records, err := p.lister.ListUnread(ctx, p.limit)
	if err != nil {
		return errs.Wrapf(errs.ErrPollFetch, "listing unread (%v)", err)
	}
	if !p.isActive() {
		return nil
	}

	delta := p.deltaSince(records)
	p.deliver(delta)

	// The cursor advances to the first (most recent) record of the raw
	// fetch result, before any priority reordering.
	if len(records) > 0 {
		p.lock.Lock()
		p.cursor = records[0].ID
		p.lock.Unlock()
	}
	return nil
}

// CheckNow polls immediately regardless of the cadence and fires the
// explicit-check callback. Used when the user opens the bell.
func (p *Poller) CheckNow(ctx context.Context) error {
	err := p.Poll(ctx)
	if p.onCheck != nil {
		p.onCheck(ctx)
	}
	return err
}

// Cursor returns the current watermark, for diagnostics.
func (p *Poller) Cursor() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.cursor
}

func (p *Poller) tick(ctx context.Context) {
	if !p.isActive() {
		return
	}

	if p.visible == nil || p.visible() {
		if p.metrics != nil {
			p.metrics.RecordPollTick()
		}
		if err := p.Poll(ctx); err != nil {
			if p.metrics != nil {
				p.metrics.RecordPollFailure()
			}
			log.Err(err).Msg("Notification poll failed")
		}
	} else {
		// Hidden surface: this tick is skipped outright, not deferred.
		if p.metrics != nil {
			p.metrics.RecordPollSkip()
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.active {
		return
	}
	t := p.clk.AfterFunc(p.interval, func() { p.tick(ctx) })
	p.timers = append(p.timers, t)
}

// deltaSince returns the records newer than the cursor. Ids are compared
// lexicographically, mirroring the backend's insertion-ordered id scheme.
func (p *Poller) deltaSince(records []Record) []Record {
	p.lock.Lock()
	cursor := p.cursor
	p.lock.Unlock()

	delta := make([]Record, 0, len(records))
	for _, rec := range records {
		if cursor == "" || rec.ID > cursor {
			delta = append(delta, rec)
		}
	}
	return delta
}

// deliver hands the delta to the sink ordered by priority (stable on ties,
// i.e. by fetch recency), spacing deliveries by the stagger. Each delivery
// is scheduled independently; a later poll's deliveries are not ordered
// against this one's.
func (p *Poller) deliver(delta []Record) {
	if len(delta) == 0 {
		return
	}

	sorted := make([]Record, len(delta))
	copy(sorted, delta)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority.Rank() < sorted[j].Priority.Rank()
	})

	if p.observer != nil {
		for _, rec := range sorted {
			p.observer(rec)
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.active {
		return
	}
	for i, rec := range sorted {
		rec := rec
		t := p.clk.AfterFunc(time.Duration(i)*p.stagger, func() {
			if p.isActive() {
				p.sink.Add(rec)
			}
		})
		p.timers = append(p.timers, t)
	}
}

func (p *Poller) isActive() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.active
}
