package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mybus-data/internal/busstop"
	"github.com/mybus-data/internal/busstop/busstoptest"
	"github.com/mybus-data/internal/common/logger"
	"github.com/mybus-data/internal/common/maintenance"
	"github.com/mybus-data/internal/livetimes"
	"github.com/mybus-data/internal/settings"
	"github.com/mybus-data/internal/updater"
	model "github.com/mybus-data/pkg/livetimes"
)

const departuresJSON = `{
	"busTimes": [
		{
			"operatorId": "LB", "stopId": "36232896", "stopName": "Princes Street",
			"mnemoService": "10", "nameService": "Western Harbour - Torphin",
			"timeDatas": [
				{"minutes": 2, "reliability": "T", "type": "N", "terminus": "36290001", "journeyId": "1001", "nameDest": "Torphin"},
				{"minutes": 14, "reliability": "H", "type": "N", "terminus": "36290001", "journeyId": "1002", "nameDest": "Torphin"}
			]
		}
	]
}`

const journeyJSON = `{
	"journeyTimes": [
		{
			"journeyId": "1001", "operatorId": "LB", "mnemoService": "10", "nameDest": "Torphin", "terminus": "36290001",
			"journeyTimeDatas": [
				{"order": 2, "stopId": "36290001", "stopName": "Torphin", "minutes": 30, "type": "D"},
				{"order": 1, "stopId": "36232896", "stopName": "Princes Street", "minutes": 2}
			]
		}
	]
}`

type fakeLiveTimes struct {
	err error
}

func (f *fakeLiveTimes) BusTimes(ctx context.Context, stopCode string) (*model.LiveBusTimes, error) {
	if f.err != nil {
		return nil, f.err
	}
	return livetimes.NewJSONParser().ParseBusTimes(strings.NewReader(departuresJSON))
}

func (f *fakeLiveTimes) JourneyTimes(ctx context.Context, stopCode, journeyID string) (*model.Journey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return livetimes.NewJSONParser().ParseJourneyTimes(strings.NewReader(journeyJSON))
}

type fakeUpdater struct {
	result updater.Result
	err    error
	calls  int
}

func (f *fakeUpdater) ForceRun(ctx context.Context) (updater.Result, error) {
	f.calls++
	return f.result, f.err
}

type testServer struct {
	app      *fiber.App
	settings *settings.Store
	live     *fakeLiveTimes
	updater  *fakeUpdater
	cleanup  *maintenance.CleanupScheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	live := &fakeLiveTimes{}
	ts := newTestServerWithLive(t, live)
	ts.live = live
	return ts
}

func newTestServerWithLive(t *testing.T, live LiveTimes) *testServer {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	asset := busstoptest.BuildFile(t, filepath.Join(dir, "assets"), "busstops10.db", busstoptest.DefaultFixture("api-topo"))
	stops, err := busstop.Open(ctx, busstop.Config{
		Path:       filepath.Join(dir, "data", "busstops10.db"),
		AssetPath:  asset,
		SchemaName: "MBE_10",
	}, logger.Nop())
	if err != nil {
		t.Fatalf("busstop.Open: %v", err)
	}
	t.Cleanup(func() { stops.Close() })

	settingsStore, err := settings.Open(ctx, settings.Config{
		Path:           filepath.Join(dir, "data", "settings.db"),
		AlertRetention: time.Hour,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	t.Cleanup(func() { settingsStore.Close() })

	cleanup := maintenance.NewCleanupScheduler(
		maintenance.New(settingsStore, dir, logger.Nop()),
		logger.Nop(),
		maintenance.DefaultSchedulerConfig(),
	)

	ts := &testServer{
		settings: settingsStore,
		updater:  &fakeUpdater{result: updater.Result{Status: updater.StatusUpToDate}},
		cleanup:  cleanup,
	}
	server := NewServer(Dependencies{
		Version:     "test",
		BusStops:    stops,
		Settings:    settingsStore,
		LiveTimes:   live,
		Updater:     ts.updater,
		Maintenance: ts.cleanup,
	}, logger.Nop())
	ts.app = server.App()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := ts.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func TestGetVersion(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/version", "")
	expectStatus(t, resp, fiber.StatusOK)

	var body map[string]string
	decode(t, resp, &body)
	if body["version"] != "test" {
		t.Errorf("Expected version test, got %q", body["version"])
	}
}

func TestGetStop(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/stops/36232896", "")
	expectStatus(t, resp, fiber.StatusOK)

	var stop stopResponse
	decode(t, resp, &stop)
	if stop.StopName != "Princes Street" {
		t.Errorf("Expected Princes Street, got %s", stop.StopName)
	}
	if strings.Join(stop.Services, ",") != "9,10,X5" {
		t.Errorf("Expected services 9,10,X5, got %v", stop.Services)
	}
	if stop.FavouriteName != "" {
		t.Errorf("Expected no favourite name, got %s", stop.FavouriteName)
	}

	resp = ts.do(t, http.MethodGet, "/stops/00000000", "")
	expectStatus(t, resp, fiber.StatusNotFound)

	var errBody map[string]string
	decode(t, resp, &errBody)
	if errBody["error"] == "" {
		t.Error("Expected error message")
	}
}

func TestStopServices(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/stops/36237926/services", "")
	expectStatus(t, resp, fiber.StatusOK)

	var services []string
	decode(t, resp, &services)
	if strings.Join(services, ",") != "10,22" {
		t.Errorf("Expected 10,22, got %v", services)
	}
}

func TestSearchStops(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/stops?q=leith", "")
	expectStatus(t, resp, fiber.StatusOK)

	var stops []busstop.BusStop
	decode(t, resp, &stops)
	if len(stops) != 1 || stops[0].StopCode != "36237926" {
		t.Errorf("Expected Ocean Terminal, got %+v", stops)
	}

	resp = ts.do(t, http.MethodGet, "/stops", "")
	expectStatus(t, resp, fiber.StatusBadRequest)
}

func TestNearbyStops(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/stops/nearby?lat=55.9520&lon=-3.1960&radius=500", "")
	expectStatus(t, resp, fiber.StatusOK)

	var stops []busstop.NearbyStop
	decode(t, resp, &stops)
	if len(stops) != 2 {
		t.Fatalf("Expected 2 nearby stops, got %d", len(stops))
	}
	if stops[0].StopCode != "36232896" || stops[1].StopCode != "36232897" {
		t.Errorf("Expected nearest first, got %s then %s", stops[0].StopCode, stops[1].StopCode)
	}

	resp = ts.do(t, http.MethodGet, "/stops/nearby?lat=55.9520&lon=-3.1960&radius=500&services=22", "")
	expectStatus(t, resp, fiber.StatusOK)
	decode(t, resp, &stops)
	if len(stops) != 1 || stops[0].StopCode != "36232897" {
		t.Errorf("Expected only Waverley Bridge for service 22, got %+v", stops)
	}

	for _, target := range []string{
		"/stops/nearby?lon=-3.1960",
		"/stops/nearby?lat=north&lon=-3.1960",
		"/stops/nearby?lat=55.9520&lon=-3.1960&radius=-1",
	} {
		resp = ts.do(t, http.MethodGet, target, "")
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", target, resp.StatusCode)
		}
	}
}

func TestServices(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/services", "")
	expectStatus(t, resp, fiber.StatusOK)

	var services []busstop.Service
	decode(t, resp, &services)
	if len(services) != 4 {
		t.Errorf("Expected 4 services, got %d", len(services))
	}

	resp = ts.do(t, http.MethodGet, "/services/22/points", "")
	expectStatus(t, resp, fiber.StatusOK)

	var points []busstop.ServicePoint
	decode(t, resp, &points)
	if len(points) != 2 {
		t.Errorf("Expected 2 points on service 22, got %d", len(points))
	}

	resp = ts.do(t, http.MethodGet, "/services/N99/points", "")
	expectStatus(t, resp, fiber.StatusNotFound)
}

func TestFavourites(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/favourites/36232896", "")
	expectStatus(t, resp, fiber.StatusOK)

	resp = ts.do(t, http.MethodPut, "/favourites/36237926", `{"stop_name": "Work"}`)
	expectStatus(t, resp, fiber.StatusOK)

	resp = ts.do(t, http.MethodGet, "/favourites", "")
	expectStatus(t, resp, fiber.StatusOK)

	var favourites []settings.Favourite
	decode(t, resp, &favourites)
	if len(favourites) != 2 {
		t.Fatalf("Expected 2 favourites, got %d", len(favourites))
	}
	if favourites[0].StopName != "Princes Street" || favourites[1].StopName != "Work" {
		t.Errorf("Unexpected favourites %+v", favourites)
	}

	resp = ts.do(t, http.MethodGet, "/stops/36237926", "")
	var stop stopResponse
	decode(t, resp, &stop)
	if stop.FavouriteName != "Work" {
		t.Errorf("Expected favourite name Work, got %q", stop.FavouriteName)
	}

	resp = ts.do(t, http.MethodDelete, "/favourites/36237926", "")
	expectStatus(t, resp, fiber.StatusNoContent)
	resp = ts.do(t, http.MethodDelete, "/favourites/36237926", "")
	expectStatus(t, resp, fiber.StatusNotFound)

	resp = ts.do(t, http.MethodPut, "/favourites/00000000", "")
	expectStatus(t, resp, fiber.StatusNotFound)
}

func TestAlerts(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/alerts/proximity", `{"stop_code": "36232896", "distance_metres": 250}`)
	expectStatus(t, resp, fiber.StatusCreated)

	resp = ts.do(t, http.MethodPost, "/alerts/time", `{"stop_code": "36237926", "services": ["22", "10"], "minutes": 5}`)
	expectStatus(t, resp, fiber.StatusCreated)

	resp = ts.do(t, http.MethodGet, "/alerts", "")
	expectStatus(t, resp, fiber.StatusOK)

	var alerts []settings.Alert
	decode(t, resp, &alerts)
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(alerts))
	}

	has, err := ts.settings.HasTimeAlert(context.Background(), "36237926")
	if err != nil || !has {
		t.Errorf("Expected time alert to be stored, has=%v err=%v", has, err)
	}

	resp = ts.do(t, http.MethodDelete, "/alerts/time/36237926", "")
	expectStatus(t, resp, fiber.StatusNoContent)
	resp = ts.do(t, http.MethodDelete, "/alerts/time/36237926", "")
	expectStatus(t, resp, fiber.StatusNotFound)
	resp = ts.do(t, http.MethodDelete, "/alerts/proximity/36232896", "")
	expectStatus(t, resp, fiber.StatusNoContent)
}

func TestAlertValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"zero distance", "/alerts/proximity", `{"stop_code": "36232896", "distance_metres": 0}`},
		{"missing stop", "/alerts/proximity", `{"distance_metres": 100}`},
		{"no services", "/alerts/time", `{"stop_code": "36232896", "services": [], "minutes": 5}`},
		{"blank service", "/alerts/time", `{"stop_code": "36232896", "services": [""], "minutes": 5}`},
		{"too many minutes", "/alerts/time", `{"stop_code": "36232896", "services": ["10"], "minutes": 90}`},
		{"not json", "/alerts/time", `{"stop_code":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, tt.target, tt.body)
			expectStatus(t, resp, fiber.StatusBadRequest)
		})
	}
}

func TestDepartures(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/stops/36232896/departures", "")
	expectStatus(t, resp, fiber.StatusOK)

	var times liveTimesResponse
	decode(t, resp, &times)
	if len(times.Stops) != 1 || times.Stops[0].StopCode != "36232896" {
		t.Fatalf("Unexpected stops %+v", times.Stops)
	}
	buses := times.Stops[0].Services[0].Buses
	if len(buses) != 2 || buses[0].JourneyID != "1001" || !buses[1].EstimatedTime {
		t.Errorf("Unexpected buses %+v", buses)
	}
}

func TestDeparturesErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{livetimes.ErrSystemOverloaded, fiber.StatusServiceUnavailable},
		{livetimes.ErrMaintenance, fiber.StatusServiceUnavailable},
		{livetimes.ErrAuthentication, fiber.StatusBadGateway},
		{livetimes.ErrInvalidParameter, fiber.StatusBadRequest},
		{context.DeadlineExceeded, fiber.StatusGatewayTimeout},
	}

	ts := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ts.live.err = tt.err
			resp := ts.do(t, http.MethodGet, "/stops/36232896/departures", "")
			expectStatus(t, resp, tt.want)
		})
	}
}

func TestDeparturesCacheAcrossRequests(t *testing.T) {
	var requests int32
	tracker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		code := r.URL.Query().Get("stopId1")
		fmt.Fprintf(w, `{"busTimes":[{"stopId":%q,"stopName":"Stop %s","mnemoService":"10","timeDatas":[{"minutes":4,"terminus":"36290001","journeyId":"j-%s","nameDest":"Torphin"}]}]}`,
			code, code, code)
	}))
	defer tracker.Close()

	client, err := livetimes.NewClient(livetimes.ClientConfig{
		BaseURL:     tracker.URL,
		APIKey:      "secret",
		Departures:  4,
		CacheExpiry: time.Minute,
		MaxParallel: 2,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ts := newTestServerWithLive(t, client)

	codes := []string{"11111111", "22222222", "33333333"}
	for round := 0; round < 2; round++ {
		for _, code := range codes {
			resp := ts.do(t, http.MethodGet, "/stops/"+code+"/departures", "")
			expectStatus(t, resp, fiber.StatusOK)

			var times liveTimesResponse
			decode(t, resp, &times)
			if len(times.Stops) != 1 || times.Stops[0].StopCode != code {
				t.Fatalf("round %d: expected stop %s, got %+v", round, code, times.Stops)
			}
			if bus := times.Stops[0].Services[0].Buses[0]; bus.JourneyID != "j-"+code {
				t.Errorf("round %d: expected journey j-%s, got %s", round, code, bus.JourneyID)
			}
		}
	}

	if got := atomic.LoadInt32(&requests); got != int32(len(codes)) {
		t.Errorf("Expected %d upstream requests with the rest served from cache, got %d", len(codes), got)
	}
}

func TestJourney(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/journeys/36232896/1001", "")
	expectStatus(t, resp, fiber.StatusOK)

	var journey journeyResponse
	decode(t, resp, &journey)
	if journey.JourneyID != "1001" || len(journey.Departures) != 2 {
		t.Fatalf("Unexpected journey %+v", journey)
	}
	if journey.Departures[0].Order != 1 || !journey.Departures[1].Terminates {
		t.Errorf("Expected departures in call order ending at the terminus, got %+v", journey.Departures)
	}
}

func TestLiveTimesNotConfigured(t *testing.T) {
	ts := newTestServer(t)
	ts.app = NewServer(Dependencies{
		Settings: ts.settings,
	}, logger.Nop()).App()

	resp := ts.do(t, http.MethodGet, "/stops/36232896/departures", "")
	expectStatus(t, resp, fiber.StatusServiceUnavailable)
	resp = ts.do(t, http.MethodPost, "/database/check", "")
	expectStatus(t, resp, fiber.StatusServiceUnavailable)
}

func TestDatabase(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/database", "")
	expectStatus(t, resp, fiber.StatusOK)

	var info busstop.VersionInfo
	decode(t, resp, &info)
	if info.TopologyID != "api-topo" || info.SchemaName != "MBE_10" {
		t.Errorf("Unexpected version %+v", info)
	}

	ts.updater.result = updater.Result{
		Status:  updater.StatusUpdated,
		Version: &updater.DatabaseVersion{SchemaName: "MBE_10", TopologyID: "next-topo"},
	}
	resp = ts.do(t, http.MethodPost, "/database/check", "")
	expectStatus(t, resp, fiber.StatusOK)

	var check checkResponse
	decode(t, resp, &check)
	if check.Status != "updated" || check.TopologyID != "next-topo" {
		t.Errorf("Unexpected check response %+v", check)
	}
	if ts.updater.calls != 1 {
		t.Errorf("Expected one forced run, got %d", ts.updater.calls)
	}

	ts.updater.err = updater.ErrChecksumMismatch
	resp = ts.do(t, http.MethodPost, "/database/check", "")
	expectStatus(t, resp, fiber.StatusBadGateway)
}

func TestMaintenance(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/maintenance/cleanup", "")
	expectStatus(t, resp, fiber.StatusOK)

	var results []maintenance.CleanupResult
	decode(t, resp, &results)
	if len(results) != 3 {
		t.Fatalf("Expected 3 task results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("Task %s failed: %s", r.Task, r.Error)
		}
	}

	resp = ts.do(t, http.MethodGet, "/maintenance", "")
	expectStatus(t, resp, fiber.StatusOK)

	var status map[string]interface{}
	decode(t, resp, &status)
	if _, ok := status["last_run"]; !ok {
		t.Errorf("Expected last_run in status, got %v", status)
	}

	ts.cleanup.LockForReplace()
	defer ts.cleanup.UnlockAfterReplace()
	resp = ts.do(t, http.MethodPost, "/maintenance/cleanup", "")
	expectStatus(t, resp, fiber.StatusConflict)
}
