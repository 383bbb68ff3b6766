package coordinator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/model"
	"github.com/thatsimonsguy/tado-bridge/internal/optimistic"
)

// Every mutating operation follows the same pattern: record the predicted
// outcome, publish so readers see it immediately, then enqueue the real API
// call keyed so rapid repeats supersede each other. None of them wait for the
// vendor to confirm.

func (c *Coordinator) SetZoneAuto(zoneID int) {
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("overlay", zoneID), false)
	// A superseded manual setting must not leave its companion predictions
	// behind.
	c.overlay.Clear(optimistic.ScopeZone, ZoneKey("temperature", zoneID))
	c.overlay.Clear(optimistic.ScopeZone, ZoneKey("power", zoneID))
	c.Publish()
	c.queue.Enqueue(fmt.Sprintf("zone_%d", zoneID), "zone", func(ctx context.Context) error {
		return c.client.ResetZoneOverlay(ctx, zoneID)
	})
}

func (c *Coordinator) SetZoneHeat(zoneID int, temperature float64) {
	if temperature < ProtectionTemperature {
		temperature = ProtectionTemperature
	}
	temp := temperature
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("overlay", zoneID), true)
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("temperature", zoneID), temp)
	c.overlay.Clear(optimistic.ScopeZone, ZoneKey("power", zoneID))
	c.Publish()
	c.queue.Enqueue(fmt.Sprintf("zone_%d", zoneID), "zone", func(ctx context.Context) error {
		return c.client.SetZoneOverlay(ctx, zoneID, model.PowerOn, temp)
	})
}

func (c *Coordinator) SetZoneOff(zoneID int) {
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("overlay", zoneID), true)
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("power", zoneID), model.PowerOff)
	c.overlay.Clear(optimistic.ScopeZone, ZoneKey("temperature", zoneID))
	c.Publish()
	c.queue.Enqueue(fmt.Sprintf("zone_%d", zoneID), "zone", func(ctx context.Context) error {
		return c.client.SetZoneOverlay(ctx, zoneID, model.PowerOff, 0)
	})
}

func (c *Coordinator) SetPresence(presence model.Presence) {
	c.overlay.Record(optimistic.ScopeHome, "presence", presence)
	c.Publish()
	c.queue.Enqueue("presence", "presence", func(ctx context.Context) error {
		return c.client.SetPresence(ctx, presence)
	})
}

func (c *Coordinator) SetChildLock(serial string, enabled bool) {
	c.overlay.Record(optimistic.ScopeDevice, DeviceKey("child_lock", serial), enabled)
	c.Publish()
	c.queue.Enqueue("device_"+serial+"_childlock", "meta", func(ctx context.Context) error {
		return c.client.SetChildLock(ctx, serial, enabled)
	})
}

func (c *Coordinator) SetTemperatureOffset(serial string, offset float64) {
	c.overlay.Record(optimistic.ScopeDevice, DeviceKey("offset", serial), offset)
	c.Publish()
	c.queue.Enqueue("device_"+serial+"_offset", "meta", func(ctx context.Context) error {
		return c.client.SetTemperatureOffset(ctx, serial, offset)
	})
}

func (c *Coordinator) SetDazzleMode(zoneID int, enabled bool) {
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("dazzle", zoneID), enabled)
	c.Publish()
	c.queue.Enqueue(fmt.Sprintf("zone_%d_dazzle", zoneID), "meta", func(ctx context.Context) error {
		return c.client.SetDazzle(ctx, zoneID, enabled)
	})
}

func (c *Coordinator) SetEarlyStart(zoneID int, enabled bool) {
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("early_start", zoneID), enabled)
	c.Publish()
	c.queue.Enqueue(fmt.Sprintf("zone_%d_earlystart", zoneID), "meta", func(ctx context.Context) error {
		return c.client.SetEarlyStart(ctx, zoneID, enabled)
	})
}

// SetOpenWindowTimeout takes minutes; zero disables detection.
func (c *Coordinator) SetOpenWindowTimeout(zoneID int, minutes float64) {
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("open_window_timeout", zoneID), minutes)
	c.Publish()
	enabled := minutes > 0
	seconds := int(minutes * 60)
	c.queue.Enqueue(fmt.Sprintf("zone_%d_openwindow", zoneID), "meta", func(ctx context.Context) error {
		return c.client.SetOpenWindowDetection(ctx, zoneID, enabled, seconds)
	})
}

func (c *Coordinator) SetAwayTemperature(zoneID int, temperature float64) {
	c.overlay.Record(optimistic.ScopeZone, ZoneKey("away_temp", zoneID), temperature)
	c.Publish()
	c.queue.Enqueue(fmt.Sprintf("zone_%d_awaytemp", zoneID), "meta", func(ctx context.Context) error {
		return c.client.SetAwayTemperature(ctx, zoneID, temperature)
	})
}

func (c *Coordinator) IdentifyDevice(serial string) {
	c.queue.Enqueue("device_"+serial+"_identify", "meta", func(ctx context.Context) error {
		return c.client.IdentifyDevice(ctx, serial)
	})
}

func (c *Coordinator) ResumeAllSchedules() {
	for _, zone := range c.Snapshot().Zones {
		c.SetZoneAuto(zone.ID)
	}
}

func (c *Coordinator) TurnOffAllZones() {
	for _, zone := range c.Snapshot().Zones {
		if zone.Type != model.ZoneTypeHeating {
			continue
		}
		c.SetZoneOff(zone.ID)
	}
}

func (c *Coordinator) BoostAllZones() {
	for _, zone := range c.Snapshot().Zones {
		if zone.Type != model.ZoneTypeHeating {
			continue
		}
		c.SetZoneHeat(zone.ID, c.cfg.BoostTemperature)
	}
}

func (c *Coordinator) SetPollingActive(active bool) {
	c.mu.Lock()
	c.pollingActive = active
	c.mu.Unlock()

	if err := c.settings.SetPollingActive(active); err != nil {
		log.Error().Err(err).Msg("Failed to persist polling toggle")
	}
	log.Info().Bool("active", active).Msg("Polling toggled")
	c.Publish()
}

func (c *Coordinator) IsPollingActive() bool {
	return c.isPollingActive()
}

func (c *Coordinator) SetReducedPollingLogic(enabled bool) {
	c.mu.Lock()
	c.reducedLogic = enabled
	c.mu.Unlock()

	if err := c.settings.SetReducedPollingLogic(enabled); err != nil {
		log.Error().Err(err).Msg("Failed to persist reduced polling toggle")
	}
	log.Info().Bool("enabled", enabled).Msg("Reduced polling logic toggled")
	c.Publish()
}

func (c *Coordinator) IsReducedPollingLogicEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reducedLogic
}

// SetReducedWindow is driven by the quiet-hours schedule.
func (c *Coordinator) SetReducedWindow(active bool) {
	c.mu.Lock()
	c.inReducedWindow = active
	c.mu.Unlock()
	log.Info().Bool("active", active).Msg("Reduced polling window changed")
}

// RestoreToggles seeds the runtime toggles from persisted settings.
func (c *Coordinator) RestoreToggles(pollingActive, reducedLogic bool) {
	c.mu.Lock()
	c.pollingActive = pollingActive
	c.reducedLogic = reducedLogic
	c.mu.Unlock()
}
