package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/tado-bridge/internal/config"
	"github.com/thatsimonsguy/tado-bridge/internal/coordinator"
	"github.com/thatsimonsguy/tado-bridge/internal/metrics"
	"github.com/thatsimonsguy/tado-bridge/internal/model"
)

type fakeAPI struct{}

func (f *fakeAPI) Zones(ctx context.Context) ([]model.Zone, error)     { return nil, nil }
func (f *fakeAPI) Devices(ctx context.Context) ([]model.Device, error) { return nil, nil }
func (f *fakeAPI) ZoneStates(ctx context.Context) (map[int]model.ZoneState, error) {
	return map[int]model.ZoneState{}, nil
}
func (f *fakeAPI) HomeState(ctx context.Context) (model.HomeState, error) {
	return model.HomeState{Presence: model.PresenceHome}, nil
}
func (f *fakeAPI) SetZoneOverlay(ctx context.Context, zoneID int, power model.Power, temperature float64) error {
	return nil
}
func (f *fakeAPI) ResetZoneOverlay(ctx context.Context, zoneID int) error         { return nil }
func (f *fakeAPI) SetPresence(ctx context.Context, presence model.Presence) error { return nil }
func (f *fakeAPI) SetChildLock(ctx context.Context, serial string, enabled bool) error {
	return nil
}
func (f *fakeAPI) SetTemperatureOffset(ctx context.Context, serial string, offset float64) error {
	return nil
}
func (f *fakeAPI) SetDazzle(ctx context.Context, zoneID int, enabled bool) error     { return nil }
func (f *fakeAPI) SetEarlyStart(ctx context.Context, zoneID int, enabled bool) error { return nil }
func (f *fakeAPI) SetOpenWindowDetection(ctx context.Context, zoneID int, enabled bool, timeoutSeconds int) error {
	return nil
}
func (f *fakeAPI) SetAwayTemperature(ctx context.Context, zoneID int, temperature float64) error {
	return nil
}
func (f *fakeAPI) IdentifyDevice(ctx context.Context, serial string) error { return nil }
func (f *fakeAPI) RateLimit() model.RateLimit {
	return model.RateLimit{Limit: 100, Remaining: 75}
}

type fakeFetcher struct {
	mu          sync.Mutex
	snapshot    model.Snapshot
	invalidated int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, nil
}

func (f *fakeFetcher) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

type fakeSettings struct{}

func (f *fakeSettings) SetPollingActive(active bool) error        { return nil }
func (f *fakeSettings) SetReducedPollingLogic(enabled bool) error { return nil }

func setupServer(t *testing.T) (*Server, *fakeFetcher) {
	t.Helper()

	temp := func(c float64) *model.Temperature { return &model.Temperature{Celsius: c} }
	fetcher := &fakeFetcher{snapshot: model.Snapshot{
		Zones: []model.Zone{
			{ID: 1, Name: "Living Room", Type: model.ZoneTypeHeating},
			{ID: 2, Name: "Bedroom", Type: model.ZoneTypeHeating},
		},
		ZoneStates: map[int]model.ZoneState{
			1: {
				Setting: model.ZoneSetting{
					Type:        model.ZoneTypeHeating,
					Power:       model.PowerOn,
					Temperature: temp(21.0),
				},
				SensorDataPoints: &model.SensorDataPoints{
					InsideTemperature: temp(19.4),
					Humidity:          &model.Percentage{Percentage: 55},
				},
			},
			2: {
				Setting: model.ZoneSetting{
					Type:        model.ZoneTypeHeating,
					Power:       model.PowerOff,
					Temperature: nil,
				},
				OverlayActive: true,
			},
		},
		HomeState: model.HomeState{Presence: model.PresenceHome},
	}}

	cfg := config.Config{BoostTemperature: 25.0, APIPort: 0}
	coord := coordinator.New(&fakeAPI{}, fetcher, metrics.New(&config.Config{}), &fakeSettings{}, coordinator.Config{
		ScanInterval:      time.Hour,
		ReducedInterval:   2 * time.Hour,
		Debounce:          time.Millisecond,
		GracePeriod:       30 * time.Second,
		ThrottleThreshold: 10,
		BoostTemperature:  25.0,
	})
	t.Cleanup(coord.Shutdown)
	coord.Refresh()

	return NewServer(coord, &cfg), fetcher
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func TestGetStatus(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.APIStatus)
	assert.Equal(t, 100, status.RateLimit)
	assert.Equal(t, 75, status.RateRemaining)
	assert.Equal(t, "HOME", status.Presence)
	assert.True(t, status.PollingActive)
	assert.Equal(t, 2, status.ZoneCount)
}

func TestGetZones(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var zones []ZoneResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zones))
	require.Len(t, zones, 2)

	byID := map[int]ZoneResponse{}
	for _, z := range zones {
		byID[z.ID] = z
	}

	assert.Equal(t, "auto", byID[1].Mode)
	require.NotNil(t, byID[1].TargetTemp)
	assert.Equal(t, 21.0, *byID[1].TargetTemp)
	require.NotNil(t, byID[1].CurrentTemp)
	assert.Equal(t, 19.4, *byID[1].CurrentTemp)

	assert.Equal(t, "off", byID[2].Mode)
	assert.Nil(t, byID[2].TargetTemp)
}

func TestGetZone(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/zones/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var zone ZoneResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &zone))
	assert.Equal(t, "Living Room", zone.Name)
	require.NotNil(t, zone.Humidity)
	assert.Equal(t, 55.0, *zone.Humidity)
}

func TestGetZoneErrors(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/zones/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/zones/kitchen", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetZoneMode(t *testing.T) {
	s, _ := setupServer(t)

	for _, mode := range []string{"auto", "heat", "off"} {
		rec := doRequest(t, s, http.MethodPut, "/api/zones/1/mode", ZoneModeRequest{Mode: mode})
		assert.Equal(t, http.StatusAccepted, rec.Code, "mode %s", mode)
	}

	rec := doRequest(t, s, http.MethodPut, "/api/zones/1/mode", ZoneModeRequest{Mode: "cool"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/zones/99/mode", ZoneModeRequest{Mode: "auto"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetZoneTemperature(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/zones/1/temperature", ZoneTemperatureRequest{Temperature: 22.5})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/zones/1/temperature", ZoneTemperatureRequest{Temperature: 40})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/zones/1/temperature", ZoneTemperatureRequest{Temperature: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPresence(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodPut, "/api/presence", PresenceRequest{Presence: "AWAY"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/presence", PresenceRequest{Presence: "somewhere"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerPollInvalidatesMetadata(t *testing.T) {
	s, fetcher := setupServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/poll", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 1, fetcher.invalidated)
}

func TestResumeAll(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/resume-all", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestMalformedJSONBody(t *testing.T) {
	s, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/zones/1/mode", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "Invalid JSON payload", errResp.Error)
}
