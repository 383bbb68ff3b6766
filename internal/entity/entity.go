// Package entity declares the bridge's entity surface as a flat table of
// definitions: plain structs with optional function fields, dispatched over a
// closed scope enum instead of inheritance.
package entity

import (
	"fmt"
	"time"

	"github.com/thatsimonsguy/tado-bridge/internal/model"
	"github.com/thatsimonsguy/tado-bridge/internal/optimistic"
)

type Scope string

const (
	ScopeHome   Scope = "home"
	ScopeZone   Scope = "zone"
	ScopeDevice Scope = "device"
	ScopeBridge Scope = "bridge"
)

type Platform string

const (
	PlatformSensor       Platform = "sensor"
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformSwitch       Platform = "switch"
	PlatformButton       Platform = "button"
	PlatformNumber       Platform = "number"
	PlatformSelect       Platform = "select"
)

const (
	CategoryDiagnostic = "diagnostic"
	CategoryConfig     = "config"
)

// Commands is the slice of the coordinator that entities may invoke.
type Commands interface {
	Snapshot() model.Snapshot
	Overlay() *optimistic.Store
	ManualPoll()
	ResumeAllSchedules()
	TurnOffAllZones()
	BoostAllZones()
	SetZoneAuto(zoneID int)
	SetZoneHeat(zoneID int, temperature float64)
	SetPresence(presence model.Presence)
	SetChildLock(serial string, enabled bool)
	SetTemperatureOffset(serial string, offset float64)
	SetDazzleMode(zoneID int, enabled bool)
	SetEarlyStart(zoneID int, enabled bool)
	SetOpenWindowTimeout(zoneID int, minutes float64)
	SetAwayTemperature(zoneID int, temperature float64)
	IdentifyDevice(serial string)
	SetPollingActive(active bool)
	IsPollingActive() bool
	SetReducedPollingLogic(enabled bool)
	IsReducedPollingLogicEnabled() bool
	CurrentPollInterval() time.Duration
	SlowPollInterval() time.Duration
}

// Context carries the target of a dispatch. ZoneID is set for zone scope,
// Serial for device and bridge scopes.
type Context struct {
	Commands Commands
	Snapshot model.Snapshot
	ZoneID   int
	Serial   string
}

// Definition describes one entity type. Which function fields are set depends
// on the platform; nil fields mean the capability is absent.
type Definition struct {
	Key      string
	Platform Platform
	Scope    Scope

	Icon              string
	Unit              string
	DeviceClass       string
	StateClass        string
	Category          string
	DisabledByDefault bool

	SupportedZoneTypes         []model.ZoneType
	RequiredDeviceCapabilities []string
	IsSupported                func(ctx Context) bool

	// Optimistic binding: when set, reads consult the overlay first.
	OptimisticKey      string
	InvertOptimistic   bool
	OptimisticValueMap map[string]bool

	Value        func(ctx Context) any
	Press        func(ctx Context)
	TurnOn       func(ctx Context)
	TurnOff      func(ctx Context)
	Set          func(ctx Context, value float64)
	Options      []string
	SelectOption func(ctx Context, option string)

	Min  float64
	Max  float64
	Step float64
}

// Instance is a definition bound to a concrete target.
type Instance struct {
	Definition Definition
	ZoneID     int
	ZoneName   string
	Serial     string
}

func (i Instance) UniqueID() string {
	switch i.Definition.Scope {
	case ScopeZone:
		return fmt.Sprintf("zone_%d_%s", i.ZoneID, i.Definition.Key)
	case ScopeDevice, ScopeBridge:
		return fmt.Sprintf("device_%s_%s", i.Serial, i.Definition.Key)
	default:
		return fmt.Sprintf("home_%s", i.Definition.Key)
	}
}

func (i Instance) Name() string {
	switch i.Definition.Scope {
	case ScopeZone:
		return fmt.Sprintf("%s %s", i.ZoneName, i.Definition.Key)
	case ScopeDevice, ScopeBridge:
		return fmt.Sprintf("%s %s", i.Serial, i.Definition.Key)
	default:
		return i.Definition.Key
	}
}

func (i Instance) context(c Commands, snap model.Snapshot) Context {
	return Context{Commands: c, Snapshot: snap, ZoneID: i.ZoneID, Serial: i.Serial}
}

// State resolves the instance value: the optimistic overlay wins while a
// prediction is live, the vendor snapshot otherwise.
func (i Instance) State(c Commands, snap model.Snapshot) any {
	def := i.Definition

	if def.OptimisticKey != "" {
		if v, ok := i.resolveOptimistic(c); ok {
			return v
		}
	}
	if def.Value == nil {
		return nil
	}
	return def.Value(i.context(c, snap))
}

func (i Instance) resolveOptimistic(c Commands) (any, bool) {
	def := i.Definition

	var scope optimistic.Scope
	var key string
	switch def.Scope {
	case ScopeZone:
		scope = optimistic.ScopeZone
		key = fmt.Sprintf("%s/%d", def.OptimisticKey, i.ZoneID)
	case ScopeDevice, ScopeBridge:
		scope = optimistic.ScopeDevice
		key = fmt.Sprintf("%s/%s", def.OptimisticKey, i.Serial)
	default:
		scope = optimistic.ScopeHome
		key = def.OptimisticKey
	}

	v, ok := c.Overlay().Resolve(scope, key)
	if !ok {
		return nil, false
	}

	if def.OptimisticValueMap != nil {
		mapped, found := def.OptimisticValueMap[fmt.Sprint(v)]
		if !found {
			return nil, false
		}
		return mapped, true
	}
	if def.InvertOptimistic {
		if b, isBool := v.(bool); isBool {
			return !b, true
		}
	}
	return v, true
}

// Instantiate expands the definition table over a snapshot, producing one
// instance per supported target.
func Instantiate(defs []Definition, c Commands, snap model.Snapshot) []Instance {
	var out []Instance

	for _, def := range defs {
		switch def.Scope {
		case ScopeHome:
			ctx := Context{Commands: c, Snapshot: snap}
			if def.IsSupported != nil && !def.IsSupported(ctx) {
				continue
			}
			out = append(out, Instance{Definition: def})

		case ScopeZone:
			for _, zone := range snap.Zones {
				if !zoneTypeSupported(def, zone.Type) {
					continue
				}
				ctx := Context{Commands: c, Snapshot: snap, ZoneID: zone.ID}
				if def.IsSupported != nil && !def.IsSupported(ctx) {
					continue
				}
				out = append(out, Instance{Definition: def, ZoneID: zone.ID, ZoneName: zone.Name})
			}

		case ScopeDevice:
			for _, dev := range snap.Devices {
				if dev.IsBridge() {
					continue
				}
				if !deviceCapsSupported(def, dev) {
					continue
				}
				ctx := Context{Commands: c, Snapshot: snap, Serial: dev.ShortSerialNo}
				if def.IsSupported != nil && !def.IsSupported(ctx) {
					continue
				}
				out = append(out, Instance{Definition: def, Serial: dev.ShortSerialNo})
			}

		case ScopeBridge:
			for _, dev := range snap.Devices {
				if !dev.IsBridge() {
					continue
				}
				out = append(out, Instance{Definition: def, Serial: dev.ShortSerialNo})
			}
		}
	}
	return out
}

func zoneTypeSupported(def Definition, zt model.ZoneType) bool {
	if len(def.SupportedZoneTypes) == 0 {
		return true
	}
	for _, t := range def.SupportedZoneTypes {
		if t == zt {
			return true
		}
	}
	return false
}

func deviceCapsSupported(def Definition, dev model.Device) bool {
	for _, cap := range def.RequiredDeviceCapabilities {
		if !dev.HasCapability(cap) {
			return false
		}
	}
	return true
}
