package entity

import (
	"github.com/thatsimonsguy/tado-bridge/internal/model"
)

// Definitions is the full entity table. Value functions read only from the
// snapshot they are handed; command functions go through Commands and return
// before the API confirms.
func Definitions() []Definition {
	return []Definition{
		// Home diagnostics
		{
			Key:      "api_status",
			Platform: PlatformSensor,
			Scope:    ScopeHome,
			Category: CategoryDiagnostic,
			Value: func(ctx Context) any {
				return string(ctx.Snapshot.APIStatus)
			},
		},
		{
			Key:        "api_limit",
			Platform:   PlatformSensor,
			Scope:      ScopeHome,
			Category:   CategoryDiagnostic,
			StateClass: "measurement",
			Value: func(ctx Context) any {
				return ctx.Snapshot.RateLimit.Limit
			},
		},
		{
			Key:        "api_remaining",
			Platform:   PlatformSensor,
			Scope:      ScopeHome,
			Category:   CategoryDiagnostic,
			StateClass: "measurement",
			Value: func(ctx Context) any {
				return ctx.Snapshot.RateLimit.Remaining
			},
		},
		{
			Key:        "polling_interval",
			Platform:   PlatformSensor,
			Scope:      ScopeHome,
			Category:   CategoryDiagnostic,
			Unit:       "s",
			StateClass: "measurement",
			Value: func(ctx Context) any {
				return ctx.Commands.CurrentPollInterval().Seconds()
			},
		},
		{
			Key:      "slow_poll_interval",
			Platform: PlatformSensor,
			Scope:    ScopeHome,
			Category: CategoryDiagnostic,
			Unit:     "h",
			Value: func(ctx Context) any {
				return ctx.Commands.SlowPollInterval().Hours()
			},
		},
		{
			Key:         "presence",
			Platform:    PlatformSensor,
			Scope:       ScopeHome,
			DeviceClass: "enum",
			Value: func(ctx Context) any {
				return string(ctx.Snapshot.HomeState.Presence)
			},
		},

		// Zone sensors
		{
			Key:                "heating_power",
			Platform:           PlatformSensor,
			Scope:              ScopeZone,
			Unit:               "%",
			StateClass:         "measurement",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				if !ok || zs.ActivityDataPoints.HeatingPower == nil {
					return nil
				}
				return zs.ActivityDataPoints.HeatingPower.Percentage
			},
		},
		{
			Key:                "inside_temperature",
			Platform:           PlatformSensor,
			Scope:              ScopeZone,
			Unit:               "°C",
			DeviceClass:        "temperature",
			StateClass:         "measurement",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating, model.ZoneTypeAirConditioning},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				if !ok || zs.SensorDataPoints == nil || zs.SensorDataPoints.InsideTemperature == nil {
					return nil
				}
				return zs.SensorDataPoints.InsideTemperature.Celsius
			},
		},
		{
			Key:                "humidity",
			Platform:           PlatformSensor,
			Scope:              ScopeZone,
			Unit:               "%",
			DeviceClass:        "humidity",
			StateClass:         "measurement",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating, model.ZoneTypeAirConditioning},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				if !ok || zs.SensorDataPoints == nil || zs.SensorDataPoints.Humidity == nil {
					return nil
				}
				return zs.SensorDataPoints.Humidity.Percentage
			},
		},
		{
			Key:         "next_schedule_change",
			Platform:    PlatformSensor,
			Scope:       ScopeZone,
			Category:    CategoryDiagnostic,
			DeviceClass: "timestamp",
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				if !ok || zs.NextScheduleChange == nil {
					return nil
				}
				return zs.NextScheduleChange.Start
			},
		},
		{
			Key:         "next_schedule_temp",
			Platform:    PlatformSensor,
			Scope:       ScopeZone,
			Category:    CategoryDiagnostic,
			Unit:        "°C",
			DeviceClass: "temperature",
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				if !ok || zs.NextScheduleChange == nil || zs.NextScheduleChange.Setting == nil {
					return nil
				}
				if zs.NextScheduleChange.Setting.Temperature == nil {
					return nil
				}
				return zs.NextScheduleChange.Setting.Temperature.Celsius
			},
		},

		// Zone binary sensors
		{
			Key:                "open_window",
			Platform:           PlatformBinarySensor,
			Scope:              ScopeZone,
			DeviceClass:        "window",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				return ok && zs.OpenWindowDetected
			},
		},
		{
			Key:                "overlay",
			Platform:           PlatformBinarySensor,
			Scope:              ScopeZone,
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHotWater},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				return ok && zs.OverlayActive
			},
		},
		{
			Key:                "power",
			Platform:           PlatformBinarySensor,
			Scope:              ScopeZone,
			DeviceClass:        "power",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHotWater},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				return ok && zs.Setting.Power == model.PowerOn
			},
		},

		// Device entities
		{
			Key:         "battery_low",
			Platform:    PlatformBinarySensor,
			Scope:       ScopeDevice,
			DeviceClass: "battery",
			Category:    CategoryDiagnostic,
			Value: func(ctx Context) any {
				dev, ok := ctx.Snapshot.Device(ctx.Serial)
				return ok && dev.BatteryState == "LOW"
			},
		},
		{
			Key:         "connectivity",
			Platform:    PlatformBinarySensor,
			Scope:       ScopeDevice,
			DeviceClass: "connectivity",
			Category:    CategoryDiagnostic,
			Value: func(ctx Context) any {
				dev, ok := ctx.Snapshot.Device(ctx.Serial)
				return ok && dev.ConnectionState.Value
			},
		},
		{
			Key:           "child_lock",
			Platform:      PlatformSwitch,
			Scope:         ScopeDevice,
			Category:      CategoryConfig,
			OptimisticKey: "child_lock",
			IsSupported: func(ctx Context) bool {
				dev, ok := ctx.Snapshot.Device(ctx.Serial)
				return ok && dev.ChildLockEnabled != nil
			},
			Value: func(ctx Context) any {
				dev, ok := ctx.Snapshot.Device(ctx.Serial)
				return ok && dev.ChildLockEnabled != nil && *dev.ChildLockEnabled
			},
			TurnOn:  func(ctx Context) { ctx.Commands.SetChildLock(ctx.Serial, true) },
			TurnOff: func(ctx Context) { ctx.Commands.SetChildLock(ctx.Serial, false) },
		},
		{
			Key:                        "temperature_offset",
			Platform:                   PlatformNumber,
			Scope:                      ScopeDevice,
			Category:                   CategoryConfig,
			Unit:                       "°C",
			Min:                        -10.0,
			Max:                        10.0,
			Step:                       0.1,
			OptimisticKey:              "offset",
			RequiredDeviceCapabilities: []string{model.CapabilityInsideTemperature},
			Value: func(ctx Context) any {
				// Offsets are not part of the fetch core; the overlay is the
				// only local source until the vendor confirms.
				return nil
			},
			Set: func(ctx Context, value float64) {
				ctx.Commands.SetTemperatureOffset(ctx.Serial, value)
			},
		},
		{
			Key:      "identify",
			Platform: PlatformButton,
			Scope:    ScopeDevice,
			Category: CategoryDiagnostic,
			Press:    func(ctx Context) { ctx.Commands.IdentifyDevice(ctx.Serial) },
		},

		// Bridge
		{
			Key:         "cloud_connection",
			Platform:    PlatformBinarySensor,
			Scope:       ScopeBridge,
			DeviceClass: "connectivity",
			Category:    CategoryDiagnostic,
			Value: func(ctx Context) any {
				dev, ok := ctx.Snapshot.Device(ctx.Serial)
				return ok && dev.ConnectionState.Value
			},
		},

		// Home switches
		{
			Key:                "away_mode",
			Platform:           PlatformSwitch,
			Scope:              ScopeHome,
			OptimisticKey:      "presence",
			OptimisticValueMap: map[string]bool{"AWAY": true, "HOME": false},
			Value: func(ctx Context) any {
				return ctx.Snapshot.HomeState.Presence == model.PresenceAway
			},
			TurnOn:  func(ctx Context) { ctx.Commands.SetPresence(model.PresenceAway) },
			TurnOff: func(ctx Context) { ctx.Commands.SetPresence(model.PresenceHome) },
		},
		{
			Key:      "polling_active",
			Platform: PlatformSwitch,
			Scope:    ScopeHome,
			Category: CategoryConfig,
			Value: func(ctx Context) any {
				return ctx.Commands.IsPollingActive()
			},
			TurnOn:  func(ctx Context) { ctx.Commands.SetPollingActive(true) },
			TurnOff: func(ctx Context) { ctx.Commands.SetPollingActive(false) },
		},
		{
			Key:      "reduced_polling_logic",
			Platform: PlatformSwitch,
			Scope:    ScopeHome,
			Category: CategoryConfig,
			Value: func(ctx Context) any {
				return ctx.Commands.IsReducedPollingLogicEnabled()
			},
			TurnOn:  func(ctx Context) { ctx.Commands.SetReducedPollingLogic(true) },
			TurnOff: func(ctx Context) { ctx.Commands.SetReducedPollingLogic(false) },
		},

		// Home select
		{
			Key:           "presence_mode",
			Platform:      PlatformSelect,
			Scope:         ScopeHome,
			Options:       []string{string(model.PresenceHome), string(model.PresenceAway)},
			OptimisticKey: "presence",
			Value: func(ctx Context) any {
				return string(ctx.Snapshot.HomeState.Presence)
			},
			SelectOption: func(ctx Context, option string) {
				ctx.Commands.SetPresence(model.Presence(option))
			},
		},

		// Zone switches
		{
			Key:                "schedule",
			Platform:           PlatformSwitch,
			Scope:              ScopeZone,
			OptimisticKey:      "overlay",
			InvertOptimistic:   true,
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				return ok && !zs.OverlayActive
			},
			TurnOn: func(ctx Context) { ctx.Commands.SetZoneAuto(ctx.ZoneID) },
			TurnOff: func(ctx Context) {
				// Leaving the schedule drops the zone to frost protection.
				ctx.Commands.SetZoneHeat(ctx.ZoneID, 5.0)
			},
		},
		{
			Key:                "dazzle_mode",
			Platform:           PlatformSwitch,
			Scope:              ScopeZone,
			Category:           CategoryConfig,
			OptimisticKey:      "dazzle",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating, model.ZoneTypeAirConditioning},
			IsSupported: func(ctx Context) bool {
				zone, ok := ctx.Snapshot.Zone(ctx.ZoneID)
				return ok && zone.SupportsDazzle
			},
			Value: func(ctx Context) any {
				zone, ok := ctx.Snapshot.Zone(ctx.ZoneID)
				return ok && zone.DazzleEnabled
			},
			TurnOn:  func(ctx Context) { ctx.Commands.SetDazzleMode(ctx.ZoneID, true) },
			TurnOff: func(ctx Context) { ctx.Commands.SetDazzleMode(ctx.ZoneID, false) },
		},
		{
			Key:                "early_start",
			Platform:           PlatformSwitch,
			Scope:              ScopeZone,
			Category:           CategoryConfig,
			OptimisticKey:      "early_start",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			Value: func(ctx Context) any {
				zone, ok := ctx.Snapshot.Zone(ctx.ZoneID)
				return ok && zone.EarlyStartEnabled
			},
			TurnOn:  func(ctx Context) { ctx.Commands.SetEarlyStart(ctx.ZoneID, true) },
			TurnOff: func(ctx Context) { ctx.Commands.SetEarlyStart(ctx.ZoneID, false) },
		},

		// Zone numbers
		{
			Key:                "target_temperature",
			Platform:           PlatformNumber,
			Scope:              ScopeZone,
			Unit:               "°C",
			Min:                5.0,
			Max:                30.0,
			Step:               0.5,
			OptimisticKey:      "temperature",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating, model.ZoneTypeHotWater},
			Value: func(ctx Context) any {
				zs, ok := ctx.Snapshot.ZoneStates[ctx.ZoneID]
				if !ok || zs.Setting.Temperature == nil {
					return nil
				}
				return zs.Setting.Temperature.Celsius
			},
			Set: func(ctx Context, value float64) {
				ctx.Commands.SetZoneHeat(ctx.ZoneID, value)
			},
		},
		{
			Key:                "away_temperature",
			Platform:           PlatformNumber,
			Scope:              ScopeZone,
			Category:           CategoryConfig,
			Unit:               "°C",
			Min:                5.0,
			Max:                25.0,
			Step:               0.1,
			OptimisticKey:      "away_temp",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			Value: func(ctx Context) any {
				// Away configuration is write-only through this bridge.
				return nil
			},
			Set: func(ctx Context, value float64) {
				ctx.Commands.SetAwayTemperature(ctx.ZoneID, value)
			},
		},
		{
			Key:                "open_window_timeout",
			Platform:           PlatformNumber,
			Scope:              ScopeZone,
			Category:           CategoryConfig,
			Unit:               "min",
			Min:                0,
			Max:                1439,
			Step:               1,
			OptimisticKey:      "open_window_timeout",
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			IsSupported: func(ctx Context) bool {
				zone, ok := ctx.Snapshot.Zone(ctx.ZoneID)
				return ok && zone.OpenWindowDetection.Supported
			},
			Value: func(ctx Context) any {
				zone, ok := ctx.Snapshot.Zone(ctx.ZoneID)
				if !ok || !zone.OpenWindowDetection.Enabled {
					return 0.0
				}
				return float64(zone.OpenWindowDetection.TimeoutInSeconds) / 60
			},
			Set: func(ctx Context, value float64) {
				ctx.Commands.SetOpenWindowTimeout(ctx.ZoneID, value)
			},
		},

		// Buttons
		{
			Key:      "manual_poll",
			Platform: PlatformButton,
			Scope:    ScopeHome,
			Category: CategoryConfig,
			Press:    func(ctx Context) { ctx.Commands.ManualPoll() },
		},
		{
			Key:      "resume_all_schedules",
			Platform: PlatformButton,
			Scope:    ScopeHome,
			Press:    func(ctx Context) { ctx.Commands.ResumeAllSchedules() },
		},
		{
			Key:      "turn_off_all_zones",
			Platform: PlatformButton,
			Scope:    ScopeHome,
			Press:    func(ctx Context) { ctx.Commands.TurnOffAllZones() },
		},
		{
			Key:      "boost_all_zones",
			Platform: PlatformButton,
			Scope:    ScopeHome,
			Press:    func(ctx Context) { ctx.Commands.BoostAllZones() },
		},
		{
			Key:                "resume_schedule",
			Platform:           PlatformButton,
			Scope:              ScopeZone,
			SupportedZoneTypes: []model.ZoneType{model.ZoneTypeHeating},
			Press:              func(ctx Context) { ctx.Commands.SetZoneAuto(ctx.ZoneID) },
		},
	}
}
