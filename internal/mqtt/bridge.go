// Package mqtt exposes the entity table to Home Assistant over MQTT
// discovery: one retained config per entity, state topics refreshed on every
// coordinator publish, and command topics dispatched back into the
// coordinator.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/config"
	"github.com/thatsimonsguy/tado-bridge/internal/entity"
	"github.com/thatsimonsguy/tado-bridge/internal/model"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
	payloadOn      = "ON"
	payloadOff     = "OFF"

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// discoveryPayload follows Home Assistant's MQTT discovery schema.
type discoveryPayload struct {
	Name              string       `json:"name"`
	UniqueID          string       `json:"unique_id"`
	StateTopic        string       `json:"state_topic,omitempty"`
	CommandTopic      string       `json:"command_topic,omitempty"`
	AvailabilityTopic string       `json:"availability_topic"`
	DeviceClass       string       `json:"device_class,omitempty"`
	StateClass        string       `json:"state_class,omitempty"`
	Unit              string       `json:"unit_of_measurement,omitempty"`
	EntityCategory    string       `json:"entity_category,omitempty"`
	Icon              string       `json:"icon,omitempty"`
	Options           []string     `json:"options,omitempty"`
	Min               *float64     `json:"min,omitempty"`
	Max               *float64     `json:"max,omitempty"`
	Step              *float64     `json:"step,omitempty"`
	EnabledByDefault  *bool        `json:"enabled_by_default,omitempty"`
	Device            deviceBlock  `json:"device"`
}

type deviceBlock struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type Bridge struct {
	client   pahomqtt.Client
	commands entity.Commands
	defs     []entity.Definition

	topicPrefix     string
	discoveryPrefix string

	mu         sync.Mutex
	instances  map[string]entity.Instance
	discovered map[string]bool
}

func New(cfg config.MQTT, commands entity.Commands) *Bridge {
	b := &Bridge{
		commands:        commands,
		defs:            entity.Definitions(),
		topicPrefix:     cfg.TopicPrefix,
		discoveryPrefix: cfg.DiscoveryPrefix,
		instances:       make(map[string]entity.Instance),
		discovered:      make(map[string]bool),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID("tado-bridge-" + uuid.NewString()[:8]).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetWill(b.availabilityTopic(), payloadOffline, 1, true).
		SetOnConnectHandler(b.onConnect)

	b.client = pahomqtt.NewClient(opts)
	return b
}

func (b *Bridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (b *Bridge) Stop() {
	b.publish(b.availabilityTopic(), payloadOffline, true)
	b.client.Disconnect(250)
}

func (b *Bridge) onConnect(_ pahomqtt.Client) {
	log.Info().Str("prefix", b.topicPrefix).Msg("Connected to MQTT broker")

	topic := b.topicPrefix + "/+/set"
	if token := b.client.Subscribe(topic, 1, b.onCommand); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to command topic")
	}
	b.publish(b.availabilityTopic(), payloadOnline, true)
}

// OnSnapshot is registered as a coordinator listener. It instantiates the
// entity table over the snapshot, announces new entities, retracts ones whose
// target disappeared, and publishes every state.
func (b *Bridge) OnSnapshot(snap model.Snapshot) {
	instances := entity.Instantiate(b.defs, b.commands, snap)

	announce, retired := b.reconcileInstances(instances)
	for _, inst := range announce {
		b.publishDiscovery(inst)
	}
	for _, inst := range retired {
		b.retract(inst)
	}

	for _, inst := range instances {
		if inst.Definition.Platform == entity.PlatformButton {
			continue
		}
		state := renderState(inst.State(b.commands, snap))
		if state == "" {
			continue
		}
		b.publish(b.stateTopic(inst), state, false)
	}
}

// reconcileInstances updates the bridge's entity bookkeeping against the
// latest instantiation. It returns the instances to announce (not yet
// discovered) and the ones to retract (known but absent from the current set,
// for example a zone removed from the home).
func (b *Bridge) reconcileInstances(instances []entity.Instance) (announce, retired []entity.Instance) {
	current := make(map[string]bool, len(instances))
	for _, inst := range instances {
		current[inst.UniqueID()] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, inst := range b.instances {
		if !current[id] {
			retired = append(retired, inst)
			delete(b.instances, id)
			delete(b.discovered, id)
		}
	}
	for _, inst := range instances {
		id := inst.UniqueID()
		b.instances[id] = inst
		if !b.discovered[id] {
			announce = append(announce, inst)
			b.discovered[id] = true
		}
	}
	return announce, retired
}

// retract removes an entity from Home Assistant by clearing its retained
// discovery config, and drops any retained state alongside it.
func (b *Bridge) retract(inst entity.Instance) {
	topic := fmt.Sprintf("%s/%s/%s/%s/config", b.discoveryPrefix, inst.Definition.Platform, b.topicPrefix, inst.UniqueID())
	b.publish(topic, "", true)
	b.publish(b.stateTopic(inst), "", true)

	log.Info().
		Str("entity", inst.UniqueID()).
		Str("platform", string(inst.Definition.Platform)).
		Msg("Retracted entity no longer present in snapshot")
}

func (b *Bridge) onCommand(_ pahomqtt.Client, msg pahomqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) < 3 {
		return
	}
	id := parts[len(parts)-2]
	payload := string(msg.Payload())

	b.mu.Lock()
	inst, ok := b.instances[id]
	b.mu.Unlock()
	if !ok {
		log.Warn().Str("entity", id).Msg("Command for unknown entity")
		return
	}

	log.Info().Str("entity", id).Str("payload", payload).Msg("MQTT command received")
	dispatchCommand(inst, b.commands, payload)
}

func dispatchCommand(inst entity.Instance, commands entity.Commands, payload string) {
	def := inst.Definition
	ctx := entity.Context{Commands: commands, Snapshot: commands.Snapshot(), ZoneID: inst.ZoneID, Serial: inst.Serial}

	switch def.Platform {
	case entity.PlatformSwitch:
		if payload == payloadOn && def.TurnOn != nil {
			def.TurnOn(ctx)
		} else if payload == payloadOff && def.TurnOff != nil {
			def.TurnOff(ctx)
		}
	case entity.PlatformButton:
		if def.Press != nil {
			def.Press(ctx)
		}
	case entity.PlatformNumber:
		value, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			log.Warn().Str("entity", inst.UniqueID()).Str("payload", payload).Msg("Ignoring malformed number payload")
			return
		}
		if def.Set != nil {
			def.Set(ctx, value)
		}
	case entity.PlatformSelect:
		if def.SelectOption != nil {
			def.SelectOption(ctx, payload)
		}
	default:
		log.Warn().Str("entity", inst.UniqueID()).Msg("Command for read-only entity")
	}
}

func (b *Bridge) publishDiscovery(inst entity.Instance) {
	def := inst.Definition

	payload := discoveryPayload{
		Name:              inst.Name(),
		UniqueID:          b.topicPrefix + "_" + inst.UniqueID(),
		StateTopic:        b.stateTopic(inst),
		AvailabilityTopic: b.availabilityTopic(),
		DeviceClass:       def.DeviceClass,
		StateClass:        def.StateClass,
		Unit:              def.Unit,
		EntityCategory:    def.Category,
		Icon:              def.Icon,
		Options:           def.Options,
		Device: deviceBlock{
			Identifiers:  []string{b.topicPrefix + "_" + deviceIdentifier(inst)},
			Name:         deviceName(inst),
			Manufacturer: "Tado",
			Model:        deviceModel(inst),
		},
	}

	switch def.Platform {
	case entity.PlatformButton:
		payload.StateTopic = ""
		payload.CommandTopic = b.commandTopic(inst)
	case entity.PlatformSwitch, entity.PlatformSelect:
		payload.CommandTopic = b.commandTopic(inst)
	case entity.PlatformNumber:
		payload.CommandTopic = b.commandTopic(inst)
		min, max, step := def.Min, def.Max, def.Step
		payload.Min = &min
		payload.Max = &max
		payload.Step = &step
	}
	if def.DisabledByDefault {
		disabled := false
		payload.EnabledByDefault = &disabled
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("entity", inst.UniqueID()).Msg("Failed to marshal discovery payload")
		return
	}

	topic := fmt.Sprintf("%s/%s/%s/%s/config", b.discoveryPrefix, def.Platform, b.topicPrefix, inst.UniqueID())
	b.publish(topic, string(data), true)

	log.Debug().
		Str("entity", inst.UniqueID()).
		Str("platform", string(def.Platform)).
		Msg("Published discovery config")
}

func (b *Bridge) publish(topic, payload string, retain bool) {
	token := b.client.Publish(topic, 1, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
	}
}

func (b *Bridge) availabilityTopic() string {
	return b.topicPrefix + "/availability"
}

func (b *Bridge) stateTopic(inst entity.Instance) string {
	return fmt.Sprintf("%s/%s/state", b.topicPrefix, inst.UniqueID())
}

func (b *Bridge) commandTopic(inst entity.Instance) string {
	return fmt.Sprintf("%s/%s/set", b.topicPrefix, inst.UniqueID())
}

func deviceIdentifier(inst entity.Instance) string {
	switch inst.Definition.Scope {
	case entity.ScopeZone:
		return fmt.Sprintf("zone_%d", inst.ZoneID)
	case entity.ScopeDevice, entity.ScopeBridge:
		return "device_" + inst.Serial
	default:
		return "home"
	}
}

func deviceName(inst entity.Instance) string {
	switch inst.Definition.Scope {
	case entity.ScopeZone:
		return inst.ZoneName
	case entity.ScopeDevice, entity.ScopeBridge:
		return inst.Serial
	default:
		return "Tado Home"
	}
}

func deviceModel(inst entity.Instance) string {
	switch inst.Definition.Scope {
	case entity.ScopeZone:
		return "Heating Zone"
	case entity.ScopeBridge:
		return "Internet Bridge"
	case entity.ScopeDevice:
		return "Thermostat"
	default:
		return "API Bridge"
	}
}

func renderState(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case bool:
		if value {
			return payloadOn
		}
		return payloadOff
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}
