// Package keepalive runs a fixed-interval tick loop that invokes a registered
// update callback while a presence indicator keeps the process visible to the host.
//
// A Service owns its running flag and callback slot; there is no process-wide state.
// Each Start begins a fresh cycle (Idle -> Running -> Stopped) with its own context,
// executor and active flag. Once Stop returns no callback invocation starts.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"

	"keepaliveagent/internal/logger"
)

// DefaultInterval is the tick spacing used when Options.Interval is zero.
const DefaultInterval = 100 * time.Millisecond

// UpdateFunc is the callback invoked on every tick. The context is cancelled on Stop.
type UpdateFunc func(ctx context.Context) error

// Func adapts a zero-argument action to an UpdateFunc.
func Func(fn func()) UpdateFunc {
	return func(context.Context) error {
		fn()
		return nil
	}
}

// Indicator is the host-visible presence signal held while a cycle is running.
type Indicator interface {
	Show(ctx context.Context) error
	Close() error
}

// Pulser is implemented by indicators that need a liveness ping on every tick.
type Pulser interface {
	Pulse(now time.Time)
}

// Options configures the tick loop.
type Options struct {
	// Name identifies the service in logs.
	Name string
	// Interval is the fixed spacing between ticks.
	Interval time.Duration
	// OverlapAllowed lets a new invocation start while the previous one is
	// still running. When false such ticks are skipped.
	OverlapAllowed bool
}

func (o Options) normalized() Options {
	if o.Name == "" {
		o.Name = "keepalive"
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock, typically with clock.NewMock() in tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIndicator sets the presence indicator shown for each cycle.
func WithIndicator(ind Indicator) Option {
	return func(s *Service) { s.indicator = ind }
}

// WithExecutorFactory replaces DefaultExecutorFactory.
func WithExecutorFactory(f ExecutorFactory) Option {
	return func(s *Service) { s.newExecutor = f }
}

// WithUpdateCallback registers the initial update callback.
func WithUpdateCallback(fn UpdateFunc) Option {
	return func(s *Service) { s.SetUpdateCallback(fn) }
}

// Service is the lifecycle controller and tick scheduler.
type Service struct {
	clock       clock.Clock
	indicator   Indicator
	newExecutor ExecutorFactory

	callback atomic.Pointer[UpdateFunc]
	running  atomic.Bool
	interval atomic.Int64

	mu   sync.Mutex
	opts Options
	cur  *cycle

	stats counters

	failLog    *rate.Limiter
	suppressed atomic.Uint64
}

// cycle is one Start..Stop activation.
type cycle struct {
	name     string
	ctx      context.Context
	cancel   context.CancelFunc
	exec     Executor
	interval time.Duration
	overlap  bool

	active atomic.Bool // cleared by Stop; checked right before each invocation
	busy   atomic.Bool // an invocation is queued or running (overlap disallowed only)
	wg     sync.WaitGroup
}

// New creates a stopped Service.
func New(opts Options, options ...Option) *Service {
	s := &Service{
		clock:       clock.New(),
		newExecutor: DefaultExecutorFactory,
		opts:        opts.normalized(),
		failLog:     rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, o := range options {
		o(s)
	}
	s.interval.Store(int64(s.opts.Interval))
	return s
}

// SetUpdateCallback replaces the callback. nil clears it; ticks then do nothing.
func (s *Service) SetUpdateCallback(fn UpdateFunc) {
	if fn == nil {
		s.callback.Store(nil)
		return
	}
	s.callback.Store(&fn)
}

// IsRunning returns whether a cycle is active.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// Options returns the options the next cycle will use.
func (s *Service) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Start shows the presence indicator, creates the executor and begins ticking.
// The first tick is dispatched immediately. Calling Start while running is a no-op.
// Cancelling ctx ends the tick loop; Stop must still be called to release resources.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// Stop ends the current cycle. It is safe to call when not running.
// Stop must not be called from inside the update callback.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Reconfigure applies opts. A running service swaps its tick loop and executor
// for a fresh cycle while the presence indicator stays shown. If the new
// executor cannot be created the current cycle keeps running on the old options.
func (s *Service) Reconfigure(ctx context.Context, opts Options) error {
	opts = opts.normalized()
	if opts.Interval < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, opts.Interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		s.opts = opts
		s.interval.Store(int64(opts.Interval))
		return nil
	}

	exec, err := s.newExecutor(opts.OverlapAllowed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutor, err)
	}

	s.haltLocked()
	s.opts = opts
	s.interval.Store(int64(opts.Interval))
	s.launchLocked(ctx, exec)
	return nil
}

func (s *Service) startLocked(ctx context.Context) error {
	if s.cur != nil {
		return nil
	}
	if s.opts.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, s.opts.Interval)
	}

	if s.indicator != nil {
		if err := s.indicator.Show(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrPresence, err)
		}
	}

	exec, err := s.newExecutor(s.opts.OverlapAllowed)
	if err != nil {
		s.closeIndicator()
		return fmt.Errorf("%w: %w", ErrExecutor, err)
	}

	s.launchLocked(ctx, exec)
	return nil
}

// launchLocked begins a cycle on exec with the current options.
func (s *Service) launchLocked(ctx context.Context, exec Executor) {
	opts := s.opts
	c := &cycle{
		name:     opts.Name,
		exec:     exec,
		interval: opts.Interval,
		overlap:  opts.OverlapAllowed,
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.active.Store(true)

	s.cur = c
	s.running.Store(true)
	s.stats.cycles.Add(1)

	c.wg.Add(1)
	go s.loop(c)

	log := logger.WithComponent(opts.Name)
	log.Info().
		Dur("interval", opts.Interval).
		Bool("overlap_allowed", opts.OverlapAllowed).
		Msg("Keep-alive cycle started")
}

// haltLocked ends the current cycle's loop and executor. The indicator and
// the running flag are left to the caller.
func (s *Service) haltLocked() {
	c := s.cur
	c.active.Store(false)
	c.cancel()
	c.wg.Wait()

	if err := c.exec.Close(); err != nil {
		log := logger.WithComponent(c.name)
		log.Error().Err(err).Msg("Error closing executor")
	}
	s.cur = nil
}

func (s *Service) stopLocked() {
	if s.cur == nil {
		return
	}
	log := logger.WithComponent(s.opts.Name)
	log.Info().Msg("Stopping keep-alive cycle")

	s.running.Store(false)
	s.haltLocked()
	s.closeIndicator()

	log.Info().
		Uint64("ticks", s.stats.ticks.Load()).
		Uint64("invocations", s.stats.invocations.Load()).
		Msg("Keep-alive cycle stopped")
}

func (s *Service) closeIndicator() {
	if s.indicator == nil {
		return
	}
	if err := s.indicator.Close(); err != nil {
		log := logger.WithComponent(s.opts.Name)
		log.Error().Err(err).Msg("Error closing presence indicator")
	}
}

func (s *Service) loop(c *cycle) {
	defer c.wg.Done()

	ticker := s.clock.Ticker(c.interval)
	defer ticker.Stop()

	s.tick(c)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.active.Load() {
				return
			}
			s.tick(c)
		}
	}
}

// tick records the tick, pulses the indicator and dispatches the callback.
// It never waits for the callback, so the cadence is independent of its duration.
func (s *Service) tick(c *cycle) {
	now := s.clock.Now()
	s.stats.ticks.Add(1)
	s.stats.lastTick.Store(now.UnixNano())

	if p, ok := s.indicator.(Pulser); ok {
		p.Pulse(now)
	}

	fnp := s.callback.Load()
	if fnp == nil {
		return
	}
	fn := *fnp

	if !c.overlap && !c.busy.CompareAndSwap(false, true) {
		s.stats.skipped.Add(1)
		return
	}

	task := func() {
		if !c.overlap {
			defer c.busy.Store(false)
		}
		if !c.active.Load() {
			return
		}
		s.invoke(c, fn)
	}

	if err := c.exec.Submit(task); err != nil {
		if !c.overlap {
			c.busy.Store(false)
		}
		if errors.Is(err, ErrExecutorBusy) {
			s.stats.skipped.Add(1)
			return
		}
		log := logger.WithComponent(c.name)
		log.Warn().Err(err).Msg("Failed to dispatch tick")
		return
	}
	s.stats.dispatched.Add(1)
}

// invoke runs fn, converting a returned error or a panic into a logged failure.
func (s *Service) invoke(c *cycle, fn UpdateFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(c, fmt.Errorf("update callback panicked: %v", r))
		}
	}()

	s.stats.invocations.Add(1)
	err := fn(c.ctx)
	if err == nil {
		return
	}
	if ctxErr := c.ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// Interrupted by Stop, not a failure of the callback.
		return
	}
	s.fail(c, err)
}

// fail counts a callback failure. Error lines are throttled to a burst of 3
// then one per second; failures beyond that are logged at debug level and the
// next error line carries how many were suppressed. Stats.Failures counts all.
func (s *Service) fail(c *cycle, err error) {
	s.stats.failures.Add(1)
	log := logger.WithComponent(c.name)
	if !s.failLog.Allow() {
		s.suppressed.Add(1)
		log.Debug().Err(err).Msg("Update callback failed")
		return
	}
	ev := log.Error().Err(err)
	if n := s.suppressed.Swap(0); n > 0 {
		ev = ev.Uint64("suppressed", n)
	}
	ev.Msg("Update callback failed")
}
