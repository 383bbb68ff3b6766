// Package poller implements the two-track fetch cache: zone and device
// metadata on a slow cadence, live state on every call.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/model"
	"github.com/thatsimonsguy/tado-bridge/internal/tado"
)

type Poller struct {
	client       tado.API
	slowInterval time.Duration
	now          func() time.Time

	zones        []model.Zone
	devices      []model.Device
	lastSlowPoll time.Time
}

func New(client tado.API, slowInterval time.Duration) *Poller {
	return &Poller{
		client:       client,
		slowInterval: slowInterval,
		now:          time.Now,
	}
}

// Fetch returns a combined snapshot. Metadata is refetched only when absent
// or stale; home and zone states are refetched unconditionally. Any vendor
// failure aborts the whole fetch; previously cached metadata survives for the
// next attempt.
func (p *Poller) Fetch(ctx context.Context) (model.Snapshot, error) {
	if p.zones == nil || p.now().Sub(p.lastSlowPoll) > p.slowInterval {
		log.Info().Msg("Fetching slow-track metadata")

		zones, err := p.client.Zones(ctx)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("fetching zones: %w", err)
		}
		devices, err := p.client.Devices(ctx)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("fetching devices: %w", err)
		}

		p.zones = zones
		p.devices = devices
		p.lastSlowPoll = p.now()
	}

	log.Debug().Msg("Fetching fast-track states")

	homeState, err := p.client.HomeState(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetching home state: %w", err)
	}
	zoneStates, err := p.client.ZoneStates(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetching zone states: %w", err)
	}

	return model.Snapshot{
		Zones:      p.zones,
		Devices:    p.devices,
		ZoneStates: zoneStates,
		HomeState:  homeState,
	}, nil
}

// Invalidate forces a metadata refresh on the next Fetch.
func (p *Poller) Invalidate() {
	p.zones = nil
}
