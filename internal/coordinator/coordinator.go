// Package coordinator orchestrates the refresh cycle: FETCH the two-track
// snapshot, RECONCILE it with rate-limit stats and the optimistic overlay,
// then PUBLISH to listeners. Mutating operations record an optimistic
// prediction and enqueue the real API call, returning immediately.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/cmdqueue"
	"github.com/thatsimonsguy/tado-bridge/internal/metrics"
	"github.com/thatsimonsguy/tado-bridge/internal/model"
	"github.com/thatsimonsguy/tado-bridge/internal/optimistic"
	"github.com/thatsimonsguy/tado-bridge/internal/tado"
)

// Fetcher is the two-track fetch cache.
type Fetcher interface {
	Fetch(ctx context.Context) (model.Snapshot, error)
	Invalidate()
}

// Settings persists per-installation toggles across restarts.
type Settings interface {
	SetPollingActive(active bool) error
	SetReducedPollingLogic(enabled bool) error
}

type Listener func(model.Snapshot)

type Config struct {
	ScanInterval      time.Duration
	ReducedInterval   time.Duration
	SlowPollInterval  time.Duration
	Debounce          time.Duration
	GracePeriod       time.Duration
	ThrottleThreshold int
	BoostTemperature  float64
}

// ProtectionTemperature is the floor for manual heat overrides: turning a
// schedule "off" still keeps frost protection.
const ProtectionTemperature = 5.0

type Coordinator struct {
	client   tado.API
	fetcher  Fetcher
	overlay  *optimistic.Store
	queue    *cmdqueue.Queue
	stats    *metrics.Client
	settings Settings
	cfg      Config

	mu              sync.Mutex
	snapshot        model.Snapshot
	listeners       []Listener
	pollingActive   bool
	reducedLogic    bool
	inReducedWindow bool
	authFailed      bool

	refreshCh chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(client tado.API, fetcher Fetcher, stats *metrics.Client, settings Settings, cfg Config) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		client:        client,
		fetcher:       fetcher,
		overlay:       optimistic.NewStore(cfg.GracePeriod),
		stats:         stats,
		settings:      settings,
		cfg:           cfg,
		pollingActive: true,
		snapshot:      model.Snapshot{APIStatus: model.APIStatusUnknown, ZoneStates: map[int]model.ZoneState{}},
		refreshCh:     make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
	c.queue = cmdqueue.New(ctx, cfg.Debounce, c.onCommandDone)
	return c
}

// Overlay exposes the optimistic store to entity readers.
func (c *Coordinator) Overlay() *optimistic.Store {
	return c.overlay
}

func (c *Coordinator) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns a copy of the last published data. Safe to retain.
func (c *Coordinator) Snapshot() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySnapshot(c.snapshot)
}

// Run drives the refresh loop until the coordinator is shut down. Cycles are
// serialized by construction: a new cycle cannot start while one is running.
func (c *Coordinator) Run() {
	go func() {
		log.Info().
			Dur("scan_interval", c.cfg.ScanInterval).
			Msg("Starting coordinator refresh loop")

		c.Refresh()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-c.refreshCh:
				if !c.isAuthFailed() {
					c.Refresh()
				}
			case <-time.After(c.currentInterval()):
				if c.isPollingActive() && !c.isAuthFailed() {
					c.Refresh()
				}
			}
		}
	}()
}

func (c *Coordinator) Shutdown() {
	c.cancel()
	c.queue.Wait()
}

// Refresh runs one FETCH → RECONCILE → PUBLISH cycle. A fetch failure leaves
// the last good snapshot in place and surfaces as a single logged error.
func (c *Coordinator) Refresh() {
	start := time.Now()

	fetched, err := c.fetcher.Fetch(c.ctx)
	if err != nil {
		c.handleFetchError(err)
		return
	}

	// RECONCILE
	fetched.RateLimit = c.client.RateLimit()
	fetched.APIStatus = model.APIStatusOK
	if fetched.RateLimit.Limit > 0 && fetched.RateLimit.Remaining < c.cfg.ThrottleThreshold {
		fetched.APIStatus = model.APIStatusThrottled
	}
	c.overlay.Sweep()

	c.mu.Lock()
	c.snapshot = fetched
	c.mu.Unlock()

	c.stats.Gauge("api.limit", float64(fetched.RateLimit.Limit))
	c.stats.Gauge("api.remaining", float64(fetched.RateLimit.Remaining))
	c.stats.Gauge("refresh.duration_ms", float64(time.Since(start).Milliseconds()))

	log.Debug().
		Int("zones", len(fetched.Zones)).
		Int("devices", len(fetched.Devices)).
		Int("api_remaining", fetched.RateLimit.Remaining).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh cycle complete")

	c.Publish()
}

func (c *Coordinator) handleFetchError(err error) {
	var authErr *tado.AuthError
	var rateErr *tado.RateLimitError

	switch {
	case errors.As(err, &authErr):
		log.Error().Err(err).Msg("Authentication failed — polling stopped until re-authorization")
		c.mu.Lock()
		c.authFailed = true
		c.snapshot.APIStatus = model.APIStatusAuthFailed
		c.mu.Unlock()
	case errors.As(err, &rateErr):
		log.Warn().Err(err).Msg("Rate limited — backing off to reduced polling interval")
		c.mu.Lock()
		c.snapshot.APIStatus = model.APIStatusThrottled
		c.snapshot.RateLimit = c.client.RateLimit()
		c.mu.Unlock()
	default:
		log.Error().Err(err).Msg("Refresh cycle failed, retaining last snapshot")
		c.mu.Lock()
		c.snapshot.APIStatus = model.APIStatusError
		c.mu.Unlock()
	}

	c.stats.Count("refresh.errors", 1)
	c.Publish()
}

// Publish notifies all listeners with a snapshot copy.
func (c *Coordinator) Publish() {
	c.mu.Lock()
	snap := copySnapshot(c.snapshot)
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// ManualPoll invalidates the metadata cache and triggers an immediate cycle.
func (c *Coordinator) ManualPoll() {
	c.fetcher.Invalidate()
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) currentInterval() time.Duration {
	c.mu.Lock()
	throttled := c.snapshot.APIStatus == model.APIStatusThrottled
	reduced := c.reducedLogic && c.inReducedWindow
	c.mu.Unlock()

	if throttled || reduced {
		return c.cfg.ReducedInterval
	}
	return c.cfg.ScanInterval
}

// CurrentPollInterval reports the interval the refresh loop is running at,
// accounting for throttling and the reduced window.
func (c *Coordinator) CurrentPollInterval() time.Duration {
	return c.currentInterval()
}

func (c *Coordinator) SlowPollInterval() time.Duration {
	return c.cfg.SlowPollInterval
}

func (c *Coordinator) isPollingActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollingActive
}

func (c *Coordinator) isAuthFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authFailed
}

// onCommandDone re-syncs only the state the finished command could have
// changed, then republishes with fresh rate-limit stats. A failed command is
// not rolled back; its optimistic entry expires on its own.
func (c *Coordinator) onCommandDone(category string, err error) {
	if err == nil {
		switch category {
		case "presence":
			if hs, herr := c.client.HomeState(c.ctx); herr == nil {
				c.mu.Lock()
				c.snapshot.HomeState = hs
				c.mu.Unlock()
			} else {
				log.Warn().Err(herr).Msg("Post-command home state sync failed")
			}
		case "zone":
			if zs, zerr := c.client.ZoneStates(c.ctx); zerr == nil {
				c.mu.Lock()
				c.snapshot.ZoneStates = zs
				c.mu.Unlock()
			} else {
				log.Warn().Err(zerr).Msg("Post-command zone state sync failed")
			}
		}
	}

	c.mu.Lock()
	c.snapshot.RateLimit = c.client.RateLimit()
	c.mu.Unlock()
	c.Publish()
}

func copySnapshot(s model.Snapshot) model.Snapshot {
	out := s
	out.Zones = append([]model.Zone(nil), s.Zones...)
	out.Devices = append([]model.Device(nil), s.Devices...)
	out.ZoneStates = make(map[int]model.ZoneState, len(s.ZoneStates))
	for id, zs := range s.ZoneStates {
		out.ZoneStates[id] = zs
	}
	return out
}

// ZoneKey builds the overlay key for a zone-scoped prediction.
func ZoneKey(key string, zoneID int) string {
	return fmt.Sprintf("%s/%d", key, zoneID)
}

// DeviceKey builds the overlay key for a device-scoped prediction.
func DeviceKey(key, serial string) string {
	return fmt.Sprintf("%s/%s", key, serial)
}
