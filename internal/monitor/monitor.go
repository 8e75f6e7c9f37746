// Package monitor runs the crossover monitoring loop: fetch, validate,
// compute, detect, dispatch, on a fixed cadence with failure isolation.
package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/quantfold/smasentinel/internal/detector"
	"github.com/quantfold/smasentinel/internal/dispatch"
	"github.com/quantfold/smasentinel/internal/logger"
	"github.com/quantfold/smasentinel/internal/models"
	"github.com/quantfold/smasentinel/internal/sma"
	"github.com/quantfold/smasentinel/internal/telegram"
)

// CycleState names the phases of one monitoring cycle.
type CycleState int

const (
	StateIdle CycleState = iota
	StateFetching
	StateBackoffWait
	StateValidating
	StateComputing
	StateDetecting
	StateDispatching
)

func (s CycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateBackoffWait:
		return "backoff_wait"
	case StateValidating:
		return "validating"
	case StateComputing:
		return "computing"
	case StateDetecting:
		return "detecting"
	case StateDispatching:
		return "dispatching"
	default:
		return "invalid"
	}
}

// Provider is the external price feed.
type Provider interface {
	FetchHistorical(ctx context.Context, minDays int) (models.PriceSeries, error)
	FetchCurrent(ctx context.Context) (models.PricePoint, error)
}

// Dispatcher fans detected events out to recipients.
type Dispatcher interface {
	Dispatch(events []models.CrossoverEvent, recipients []int64, series models.PriceSeries) dispatch.Report
}

// Registry is the subscriber set consulted at dispatch time.
type Registry interface {
	Add(chatID int64) (bool, error)
	Remove(chatID int64) (bool, error)
	Contains(chatID int64) bool
	Snapshot() []int64
}

// StateStore checkpoints crossover state and alert history. Optional.
type StateStore interface {
	SaveState(state models.CrossoverState) error
	LoadState() (models.CrossoverState, error)
	AddAlert(event models.CrossoverEvent) error
}

// Renderer draws the chart attached to /status replies. Optional.
type Renderer interface {
	Render(series models.PriceSeries) ([]byte, error)
}

// Config holds monitoring behavior settings.
type Config struct {
	CheckInterval  time.Duration
	Periods        []int
	MinHistoryDays int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	MaxRetries     int
	RestoreState   bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  5 * time.Minute,
		Periods:        sma.DefaultPeriods,
		MinHistoryDays: models.MinSeriesLength,
		BackoffInitial: 30 * time.Second,
		BackoffMax:     5 * time.Minute,
		MaxRetries:     5,
	}
}

// statusSnapshot is the latest completed cycle's observation, published
// atomically so /status never sees a half-updated SMA set.
type statusSnapshot struct {
	price       float64
	smas        map[int]float64
	series      models.PriceSeries
	completedAt time.Time
}

// Service owns the crossover state and drives the monitoring loop. The loop
// goroutine is the sole mutator of state; command handlers only touch the
// registry and the published snapshot.
type Service struct {
	provider   Provider
	dispatcher Dispatcher
	registry   Registry
	store      StateStore
	renderer   Renderer
	config     Config

	state    models.CrossoverState
	cycle    CycleState
	snapshot atomic.Pointer[statusSnapshot]

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a monitoring service. store and renderer may be nil.
func New(provider Provider, dispatcher Dispatcher, registry Registry, store StateStore, renderer Renderer, config Config) *Service {
	s := &Service{
		provider:   provider,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		renderer:   renderer,
		config:     config,
		state:      models.NewCrossoverState(config.Periods),
		cycle:      StateIdle,
		now:        time.Now,
		sleep:      sleepContext,
	}

	if config.RestoreState && store != nil {
		persisted, err := store.LoadState()
		if err != nil {
			logger.Warn("Failed to restore crossover state, starting from unknown: %v", err)
		} else if persisted != nil {
			restored := 0
			for _, period := range config.Periods {
				if side, ok := persisted[period]; ok {
					s.state[period] = side
					restored++
				}
			}
			logger.Info("Restored crossover state for %d of %d periods", restored, len(config.Periods))
		}
	}

	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) transition(to CycleState) {
	logger.Debug("Cycle state: %s -> %s", s.cycle, to)
	s.cycle = to
}

// Run executes monitoring cycles until ctx is cancelled. At most one cycle
// is in flight at a time; a cycle that overruns the interval is logged and
// completes before the next tick is honored.
func (s *Service) Run(ctx context.Context) {
	interval := s.config.CheckInterval
	logger.Info("Starting monitoring loop (interval: %v, periods: %v)", interval, s.config.Periods)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runCycleLogged(ctx, interval)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-ticker.C:
			s.runCycleLogged(ctx, interval)
		}
	}
}

func (s *Service) runCycleLogged(ctx context.Context, interval time.Duration) {
	start := s.now()
	if err := s.runCycle(ctx); err != nil {
		var vErr *models.ValidationError
		switch {
		case errors.Is(err, context.Canceled):
			logger.Info("Cycle interrupted by shutdown")
		case errors.As(err, &vErr):
			logger.Warn("Cycle abandoned: %v", err)
		default:
			logger.Error("Cycle abandoned: %v", err)
		}
	}
	elapsed := s.now().Sub(start)
	if elapsed > interval {
		logger.Warn("Cycle took %v, longer than the %v interval", elapsed, interval)
	}
}

// runCycle performs one fetch -> validate -> compute -> detect -> dispatch
// pass. On any abandonment the crossover state is left exactly as it was.
func (s *Service) runCycle(ctx context.Context) error {
	defer s.transition(StateIdle)

	s.transition(StateFetching)
	series, current, err := s.fetchWithBackoff(ctx)
	if err != nil {
		return err
	}
	fetchedAt := s.now()

	s.transition(StateValidating)
	if err := series.Validate(s.config.MinHistoryDays); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}

	s.transition(StateComputing)
	smaValues := sma.CalculateAll(series, s.config.Periods)

	s.transition(StateDetecting)
	events, nextState := detector.Detect(current.Close, smaValues, s.state, fetchedAt)
	s.state = nextState
	s.publishSnapshot(current.Close, smaValues, series, fetchedAt)

	if len(events) == 0 {
		logger.Debug("No crossovers detected")
		return nil
	}
	logger.Info("Detected %d crossover(s)", len(events))
	s.persistEvents(events)

	s.transition(StateDispatching)
	recipients := s.registry.Snapshot()
	report := s.dispatcher.Dispatch(events, recipients, series)
	logger.Info("Dispatched alerts: sent=%d failed=%d (recipients: %d)", report.Sent, report.Failed, len(recipients))

	return nil
}

// fetchWithBackoff retrieves the series and current price, entering
// BackoffWait with exponentially growing delays on provider errors. After
// MaxRetries the cycle is abandoned; the next scheduled tick starts fresh.
func (s *Service) fetchWithBackoff(ctx context.Context) (models.PriceSeries, models.PricePoint, error) {
	delay := s.config.BackoffInitial
	var lastErr error

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		series, err := s.provider.FetchHistorical(ctx, s.config.MinHistoryDays)
		if err == nil {
			var current models.PricePoint
			current, err = s.provider.FetchCurrent(ctx)
			if err == nil {
				return series, current, nil
			}
		}
		lastErr = err

		if attempt == s.config.MaxRetries {
			break
		}
		logger.Warn("Provider error (attempt %d/%d), backing off %v: %v", attempt, s.config.MaxRetries, delay, err)
		s.transition(StateBackoffWait)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, models.PricePoint{}, err
		}
		s.transition(StateFetching)

		delay *= 2
		if delay > s.config.BackoffMax {
			delay = s.config.BackoffMax
		}
	}

	return nil, models.PricePoint{}, lastErr
}

func (s *Service) publishSnapshot(price float64, smaValues map[int]sma.Value, series models.PriceSeries, at time.Time) {
	smas := make(map[int]float64, len(smaValues))
	for period, value := range smaValues {
		smas[period] = value.Value
	}
	s.snapshot.Store(&statusSnapshot{
		price:       price,
		smas:        smas,
		series:      series,
		completedAt: at,
	})
}

func (s *Service) persistEvents(events []models.CrossoverEvent) {
	if s.store == nil {
		return
	}
	for _, event := range events {
		if err := s.store.AddAlert(event); err != nil {
			logger.Warn("Failed to record alert for period %d: %v", event.Period, err)
		}
	}
	if err := s.store.SaveState(s.state); err != nil {
		logger.Warn("Failed to checkpoint crossover state: %v", err)
	}
}

func (s *Service) shutdown() {
	if s.store != nil {
		if err := s.store.SaveState(s.state); err != nil {
			logger.Warn("Failed to checkpoint crossover state at shutdown: %v", err)
		}
	}
	logger.Info("Monitoring loop stopped")
}

// Subscribe adds a chat to the alert recipients.
func (s *Service) Subscribe(chatID int64) (bool, error) {
	return s.registry.Add(chatID)
}

// Unsubscribe removes a chat from the alert recipients.
func (s *Service) Unsubscribe(chatID int64) (bool, error) {
	return s.registry.Remove(chatID)
}

// Status reads the latest published cycle snapshot; it never fetches.
func (s *Service) Status(chatID int64) telegram.StatusReport {
	report := telegram.StatusReport{
		Subscribed: s.registry.Contains(chatID),
		Periods:    s.config.Periods,
	}

	snap := s.snapshot.Load()
	if snap == nil {
		return report
	}

	report.HasData = true
	report.Price = snap.price
	report.SMAs = snap.smas

	if s.renderer != nil {
		image, err := s.renderer.Render(snap.series)
		if err != nil {
			logger.Warn("Chart rendering for status failed: %v", err)
		} else {
			report.Chart = image
		}
	}

	return report
}
