// Package metrics wraps DogStatsD behind an explicit handle so components
// receive their metrics sink by reference instead of through package state.
package metrics

import (
	"github.com/DataDog/datadog-go/statsd"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/config"
)

type Client struct {
	dogstatsd *statsd.Client
	enabled   bool
}

func New(cfg *config.Config) *Client {
	if !cfg.EnableDatadog {
		return &Client{}
	}

	dogstatsd, err := statsd.New(cfg.DDAgentAddr)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create DogStatsD client")
		return &Client{}
	}

	dogstatsd.Namespace = cfg.DDNamespace
	dogstatsd.Tags = cfg.DDTags

	log.Info().
		Str("addr", cfg.DDAgentAddr).
		Str("namespace", cfg.DDNamespace).
		Strs("tags", cfg.DDTags).
		Msg("Datadog metrics initialized")

	return &Client{dogstatsd: dogstatsd, enabled: true}
}

func (c *Client) Gauge(name string, value float64, tags ...string) {
	if c.dogstatsd == nil {
		return
	}
	if err := c.dogstatsd.Gauge(name, value, tags, 1); err != nil && c.enabled {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to emit gauge metric")
	}
}

func (c *Client) Count(name string, value int64, tags ...string) {
	if c.dogstatsd == nil {
		return
	}
	if err := c.dogstatsd.Count(name, value, tags, 1); err != nil && c.enabled {
		log.Warn().Err(err).Str("metric", name).Msg("Failed to emit count metric")
	}
}

func (c *Client) Close() {
	if c.dogstatsd != nil {
		_ = c.dogstatsd.Close()
	}
}
