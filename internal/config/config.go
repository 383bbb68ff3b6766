package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	minScanIntervalSeconds = 30
	minSlowPollHours       = 1
)

type MQTT struct {
	BrokerURL       string `json:"broker_url"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	TopicPrefix     string `json:"topic_prefix"`
	DiscoveryPrefix string `json:"discovery_prefix"`
}

type Config struct {
	ConfigFile string
	DBFile     string
	LogLevel   zerolog.Level

	RefreshToken string `json:"refresh_token"`

	ScanIntervalSeconds    int     `json:"scan_interval_seconds"`
	SlowPollIntervalHours  int     `json:"slow_poll_interval_hours"`
	OptimisticGraceSeconds int     `json:"optimistic_grace_seconds"`
	DebounceSeconds        int     `json:"debounce_seconds"`
	ThrottleThreshold      int     `json:"throttle_threshold"`
	BoostTemperature       float64 `json:"boost_temperature"`

	ReducedPollingStart           string `json:"reduced_polling_start"`
	ReducedPollingEnd             string `json:"reduced_polling_end"`
	ReducedPollingIntervalSeconds int    `json:"reduced_polling_interval_seconds"`

	APIPort int  `json:"api_port"`
	MQTT    MQTT `json:"mqtt"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to bridge config file")
	flag.StringVar(&cfg.DBFile, "db-file", "data/bridge.db", "Path to settings database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.ScanIntervalSeconds == 0 {
		cfg.ScanIntervalSeconds = 3600
	}
	if cfg.SlowPollIntervalHours == 0 {
		cfg.SlowPollIntervalHours = 24
	}
	if cfg.OptimisticGraceSeconds == 0 {
		cfg.OptimisticGraceSeconds = 30
	}
	if cfg.DebounceSeconds == 0 {
		cfg.DebounceSeconds = 5
	}
	if cfg.ThrottleThreshold == 0 {
		cfg.ThrottleThreshold = 100
	}
	if cfg.BoostTemperature == 0 {
		cfg.BoostTemperature = 25.0
	}
	if cfg.ReducedPollingStart == "" {
		cfg.ReducedPollingStart = "00:00"
	}
	if cfg.ReducedPollingEnd == "" {
		cfg.ReducedPollingEnd = "06:00"
	}
	if cfg.ReducedPollingIntervalSeconds == 0 {
		cfg.ReducedPollingIntervalSeconds = 7200
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "tado-bridge"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.DDNamespace == "" {
		cfg.DDNamespace = "tado_bridge."
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.RefreshToken == "" {
		problems = append(problems, "refresh_token is required")
	}
	if cfg.ScanIntervalSeconds < minScanIntervalSeconds {
		problems = append(problems, fmt.Sprintf("scan_interval_seconds must be at least %d", minScanIntervalSeconds))
	}
	if cfg.SlowPollIntervalHours < minSlowPollHours {
		problems = append(problems, fmt.Sprintf("slow_poll_interval_hours must be at least %d", minSlowPollHours))
	}
	if cfg.OptimisticGraceSeconds < 0 {
		problems = append(problems, "optimistic_grace_seconds must not be negative")
	}
	if !validClockTime(cfg.ReducedPollingStart) {
		problems = append(problems, "reduced_polling_start must be HH:MM")
	}
	if !validClockTime(cfg.ReducedPollingEnd) {
		problems = append(problems, "reduced_polling_end must be HH:MM")
	}
	if cfg.EnableDatadog && cfg.DDAgentAddr == "" {
		problems = append(problems, "dd_agent_addr is required when datadog is enabled")
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, ", "))
	}
}

func validClockTime(s string) bool {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return false
	}
	return h >= 0 && h < 24 && m >= 0 && m < 60
}
