package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	model "github.com/mybus-data/pkg/livetimes"
)

func TestLiveTimesResponseEmptyBuses(t *testing.T) {
	service, err := model.LiveBusServiceBuilder{ServiceName: "N22", Buses: []*model.LiveBus{}}.Build()
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	stop, err := model.LiveBusStopBuilder{StopCode: "36232896", Services: []*model.LiveBusService{service}}.Build()
	if err != nil {
		t.Fatalf("building stop: %v", err)
	}
	times, err := model.LiveBusTimesBuilder{
		BusStops:    map[string]*model.LiveBusStop{"36232896": stop},
		ReceiveTime: time.Now(),
	}.Build()
	if err != nil {
		t.Fatalf("building times: %v", err)
	}

	raw, err := json.Marshal(newLiveTimesResponse(times))
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if !strings.Contains(string(raw), `"buses":[]`) {
		t.Errorf("Expected an empty buses array, got %s", raw)
	}
	if strings.Contains(string(raw), "null") {
		t.Errorf("Expected no null collections, got %s", raw)
	}
}
