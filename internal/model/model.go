package model

type ZoneType string

const (
	ZoneTypeHeating         ZoneType = "HEATING"
	ZoneTypeAirConditioning ZoneType = "AIR_CONDITIONING"
	ZoneTypeHotWater        ZoneType = "HOT_WATER"
)

type Presence string

const (
	PresenceHome Presence = "HOME"
	PresenceAway Presence = "AWAY"
)

type Power string

const (
	PowerOn  Power = "ON"
	PowerOff Power = "OFF"
)

type APIStatus string

const (
	APIStatusUnknown    APIStatus = "unknown"
	APIStatusOK         APIStatus = "ok"
	APIStatusThrottled  APIStatus = "throttled"
	APIStatusAuthFailed APIStatus = "auth_failed"
	APIStatusError      APIStatus = "error"
)

// Zone is slow-track metadata, replaced wholesale on each metadata refresh.
type Zone struct {
	ID                  int                 `json:"id"`
	Name                string              `json:"name"`
	Type                ZoneType            `json:"type"`
	Devices             []Device            `json:"devices"`
	DazzleEnabled       bool                `json:"dazzleEnabled"`
	SupportsDazzle      bool                `json:"supportsDazzle"`
	EarlyStartEnabled   bool                `json:"earlyStartEnabled"`
	OpenWindowDetection OpenWindowDetection `json:"openWindowDetection"`
}

type OpenWindowDetection struct {
	Supported        bool `json:"supported"`
	Enabled          bool `json:"enabled"`
	TimeoutInSeconds int  `json:"timeoutInSeconds"`
}

// Device shares the zone metadata lifecycle.
type Device struct {
	SerialNo         string          `json:"serialNo"`
	ShortSerialNo    string          `json:"shortSerialNo"`
	DeviceType       string          `json:"deviceType"`
	FirmwareVersion  string          `json:"currentFwVersion"`
	BatteryState     string          `json:"batteryState"`
	ConnectionState  ConnectionState `json:"connectionState"`
	ChildLockEnabled *bool           `json:"childLockEnabled"`
	Characteristics  Characteristics `json:"characteristics"`
}

type ConnectionState struct {
	Value bool `json:"value"`
}

type Characteristics struct {
	Capabilities []string `json:"capabilities"`
}

const CapabilityInsideTemperature = "INSIDE_TEMPERATURE_MEASUREMENT"

func (d Device) HasCapability(cap string) bool {
	for _, c := range d.Characteristics.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

func (d Device) IsBridge() bool {
	return d.DeviceType == "IB01" || d.DeviceType == "BR02"
}

// ZoneState is fast-track live status, refetched every cycle and never patched.
type ZoneState struct {
	Setting            ZoneSetting       `json:"setting"`
	OverlayActive      bool              `json:"overlayActive"`
	Overlay            *Overlay          `json:"overlay"`
	ActivityDataPoints DataPoints        `json:"activityDataPoints"`
	SensorDataPoints   *SensorDataPoints `json:"sensorDataPoints"`
	OpenWindowDetected bool              `json:"openWindowDetected"`
	NextScheduleChange *ScheduleChange   `json:"nextScheduleChange"`
}

type ZoneSetting struct {
	Type        ZoneType     `json:"type"`
	Power       Power        `json:"power"`
	Temperature *Temperature `json:"temperature"`
}

type Overlay struct {
	Setting     ZoneSetting `json:"setting"`
	Termination Termination `json:"termination"`
}

type Termination struct {
	Type string `json:"type"`
}

type Temperature struct {
	Celsius float64 `json:"celsius"`
}

type DataPoints struct {
	HeatingPower *Percentage `json:"heatingPower"`
}

type SensorDataPoints struct {
	InsideTemperature *Temperature `json:"insideTemperature"`
	Humidity          *Percentage  `json:"humidity"`
}

type Percentage struct {
	Percentage float64 `json:"percentage"`
}

type ScheduleChange struct {
	Start   string       `json:"start"`
	Setting *ZoneSetting `json:"setting"`
}

type HomeState struct {
	Presence       Presence `json:"presence"`
	PresenceLocked bool     `json:"presenceLocked"`
}

// RateLimit mirrors the quota headers of the most recent API response.
// Overwritten wholesale, never averaged.
type RateLimit struct {
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Snapshot is the merged result of one refresh cycle. Readers receive it by
// value and must not retain references across cycles.
type Snapshot struct {
	Zones      []Zone
	Devices    []Device
	ZoneStates map[int]ZoneState
	HomeState  HomeState
	RateLimit  RateLimit
	APIStatus  APIStatus
}

func (s Snapshot) Zone(id int) (Zone, bool) {
	for _, z := range s.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

func (s Snapshot) Device(serial string) (Device, bool) {
	for _, d := range s.Devices {
		if d.ShortSerialNo == serial || d.SerialNo == serial {
			return d, true
		}
	}
	return Device{}, false
}
