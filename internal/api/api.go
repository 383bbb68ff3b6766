// Package api is the local REST surface of the bridge. Mutations are
// accepted, recorded optimistically, and queued; they do not wait for the
// vendor round-trip.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/config"
	"github.com/thatsimonsguy/tado-bridge/internal/coordinator"
	"github.com/thatsimonsguy/tado-bridge/internal/model"
)

type Server struct {
	coord  *coordinator.Coordinator
	config *config.Config
	srv    *http.Server
}

type StatusResponse struct {
	APIStatus     string `json:"api_status"`
	RateLimit     int    `json:"rate_limit"`
	RateRemaining int    `json:"rate_remaining"`
	Presence      string `json:"presence"`
	PollingActive bool   `json:"polling_active"`
	ZoneCount     int    `json:"zone_count"`
}

type ZoneResponse struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Power       string   `json:"power"`
	Mode        string   `json:"mode"`
	TargetTemp  *float64 `json:"target_temp,omitempty"`
	CurrentTemp *float64 `json:"current_temp,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	OpenWindow  bool     `json:"open_window"`
}

type ZoneModeRequest struct {
	Mode string `json:"mode"`
}

type ZoneTemperatureRequest struct {
	Temperature float64 `json:"temperature"`
}

type PresenceRequest struct {
	Presence string `json:"presence"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(coord *coordinator.Coordinator, cfg *config.Config) *Server {
	return &Server{coord: coord, config: cfg}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/zones", s.getZones)
		r.Get("/zones/{id}", s.getZone)
		r.Put("/zones/{id}/mode", s.setZoneMode)
		r.Put("/zones/{id}/temperature", s.setZoneTemperature)
		r.Put("/presence", s.setPresence)
		r.Post("/poll", s.triggerPoll)
		r.Post("/resume-all", s.resumeAll)
	})

	return r
}

func (s *Server) Start() {
	addr := fmt.Sprintf("0.0.0.0:%d", s.config.APIPort)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", addr).Msg("Starting REST API server")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("REST API server failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Snapshot()
	response := StatusResponse{
		APIStatus:     string(snap.APIStatus),
		RateLimit:     snap.RateLimit.Limit,
		RateRemaining: snap.RateLimit.Remaining,
		Presence:      string(snap.HomeState.Presence),
		PollingActive: s.coord.IsPollingActive(),
		ZoneCount:     len(snap.Zones),
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getZones(w http.ResponseWriter, r *http.Request) {
	snap := s.coord.Snapshot()
	response := make([]ZoneResponse, 0, len(snap.Zones))
	for _, zone := range snap.Zones {
		response = append(response, s.zoneResponse(snap, zone))
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	zoneID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Zone ID must be numeric")
		return
	}

	snap := s.coord.Snapshot()
	zone, ok := snap.Zone(zoneID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Zone not found")
		return
	}

	s.writeJSON(w, http.StatusOK, s.zoneResponse(snap, zone))
}

func (s *Server) setZoneMode(w http.ResponseWriter, r *http.Request) {
	zoneID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Zone ID must be numeric")
		return
	}

	snap := s.coord.Snapshot()
	if _, ok := snap.Zone(zoneID); !ok {
		s.writeError(w, http.StatusNotFound, "Zone not found")
		return
	}

	var req ZoneModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	switch req.Mode {
	case "auto":
		s.coord.SetZoneAuto(zoneID)
	case "heat":
		temp := s.config.BoostTemperature
		if state, ok := snap.ZoneStates[zoneID]; ok && state.Setting.Temperature != nil {
			temp = state.Setting.Temperature.Celsius
		}
		s.coord.SetZoneHeat(zoneID, temp)
	case "off":
		s.coord.SetZoneOff(zoneID)
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid zone mode. Valid modes: auto, heat, off")
		return
	}

	log.Info().Int("zone_id", zoneID).Str("mode", req.Mode).Msg("Zone mode updated via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) setZoneTemperature(w http.ResponseWriter, r *http.Request) {
	zoneID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Zone ID must be numeric")
		return
	}

	if _, ok := s.coord.Snapshot().Zone(zoneID); !ok {
		s.writeError(w, http.StatusNotFound, "Zone not found")
		return
	}

	var req ZoneTemperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if req.Temperature < coordinator.ProtectionTemperature || req.Temperature > 30 {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid temperature. Must be between %.1f°C and 30.0°C", coordinator.ProtectionTemperature))
		return
	}

	s.coord.SetZoneHeat(zoneID, req.Temperature)

	log.Info().Int("zone_id", zoneID).Float64("temperature", req.Temperature).Msg("Zone temperature updated via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) setPresence(w http.ResponseWriter, r *http.Request) {
	var req PresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	presence := model.Presence(req.Presence)
	if presence != model.PresenceHome && presence != model.PresenceAway {
		s.writeError(w, http.StatusBadRequest, "Invalid presence. Valid values: HOME, AWAY")
		return
	}

	s.coord.SetPresence(presence)

	log.Info().Str("presence", req.Presence).Msg("Presence updated via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) triggerPoll(w http.ResponseWriter, r *http.Request) {
	s.coord.ManualPoll()
	log.Info().Msg("Manual poll triggered via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) resumeAll(w http.ResponseWriter, r *http.Request) {
	s.coord.ResumeAllSchedules()
	log.Info().Msg("Resume all schedules triggered via API")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) zoneResponse(snap model.Snapshot, zone model.Zone) ZoneResponse {
	response := ZoneResponse{
		ID:   zone.ID,
		Name: zone.Name,
		Type: string(zone.Type),
	}

	state, ok := snap.ZoneStates[zone.ID]
	if !ok {
		return response
	}

	response.Power = string(state.Setting.Power)
	response.OpenWindow = state.OpenWindowDetected
	if state.OverlayActive {
		if state.Setting.Power == model.PowerOff {
			response.Mode = "off"
		} else {
			response.Mode = "heat"
		}
	} else {
		response.Mode = "auto"
	}
	if state.Setting.Temperature != nil {
		response.TargetTemp = &state.Setting.Temperature.Celsius
	}
	if sdp := state.SensorDataPoints; sdp != nil {
		if sdp.InsideTemperature != nil {
			response.CurrentTemp = &sdp.InsideTemperature.Celsius
		}
		if sdp.Humidity != nil {
			response.Humidity = &sdp.Humidity.Percentage
		}
	}

	return response
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
