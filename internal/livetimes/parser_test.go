package livetimes

import (
	"errors"
	"strings"
	"testing"
	"time"

	model "github.com/mybus-data/pkg/livetimes"
)

const busTimesJSON = `{
	"busTimes": [
		{
			"operatorId": "LB", "stopId": "36232896", "stopName": "Princes Street",
			"refService": "10", "mnemoService": "10", "nameService": "Western Harbour - Torphin",
			"busStopDisruption": false, "serviceDisruption": true, "serviceDiversion": false,
			"timeDatas": [
				{"day": 0, "time": "17:12", "minutes": 12, "reliability": "H", "type": "N", "terminus": "36290001", "journeyId": "1002", "nameDest": "Torphin"},
				{"day": 0, "time": "17:02", "minutes": 2, "reliability": "T", "type": "N", "terminus": "36290001", "journeyId": "1001", "nameDest": "Torphin"}
			]
		},
		{
			"operatorId": "LB", "stopId": "36232896", "stopName": "Princes Street",
			"refService": "9", "mnemoService": "9", "nameService": "Colinton - Fort Kinnaird",
			"busStopDisruption": true, "serviceDisruption": false, "serviceDiversion": true,
			"timeDatas": [
				{"day": 0, "time": "17:05", "minutes": 5, "reliability": "B", "type": "P", "terminus": "36290002", "journeyId": "2001", "nameDest": "Fort Kinnaird"}
			]
		},
		{
			"operatorId": "LB", "stopId": "36237926", "stopName": "Ocean Terminal",
			"refService": "22", "mnemoService": "22", "nameService": "Ocean Terminal - Gyle Centre",
			"timeDatas": [
				{"day": 0, "time": "17:00", "minutes": 0, "reliability": "V", "type": "D", "terminus": "36237926", "journeyId": "3001", "nameDest": "Gyle Centre"}
			]
		}
	],
	"globalDisruption": true
}`

const journeyTimesJSON = `{
	"journeyTimes": [
		{
			"journeyId": "1001", "operatorId": "LB", "mnemoService": "10",
			"nameService": "Western Harbour - Torphin", "nameDest": "Torphin", "terminus": "36290001",
			"globalDisruption": false, "serviceDisruption": false, "serviceDiversion": true,
			"journeyTimeDatas": [
				{"order": 3, "stopId": "36290001", "stopName": "Torphin", "minutes": 30, "reliability": "T", "type": "D"},
				{"order": 1, "stopId": "36232896", "stopName": "Princes Street", "minutes": 2, "reliability": "T", "type": "N"},
				{"order": 2, "stopId": "36232950", "stopName": "Lothian Road", "minutes": 6, "reliability": "H", "type": "N", "busStopDisruption": true}
			]
		}
	]
}`

func testParser(now time.Time) *JSONParser {
	return &JSONParser{now: func() time.Time { return now }}
}

func TestParseBusTimes(t *testing.T) {
	now := time.Date(2024, 5, 10, 17, 0, 30, 0, time.UTC)
	times, err := testParser(now).ParseBusTimes(strings.NewReader(busTimesJSON))
	if err != nil {
		t.Fatalf("ParseBusTimes: %v", err)
	}

	if !times.HasGlobalDisruption() {
		t.Error("Expected global disruption")
	}
	if !times.ReceiveTime().Equal(now) {
		t.Errorf("Expected receive time %v, got %v", now, times.ReceiveTime())
	}
	if got := times.StopCodes(); len(got) != 2 || got[0] != "36232896" || got[1] != "36237926" {
		t.Fatalf("Unexpected stop codes %v", got)
	}

	princes := times.BusStop("36232896")
	if princes.StopName() != "Princes Street" || !princes.IsDisrupted() {
		t.Errorf("Unexpected stop %s disrupted=%v", princes.StopName(), princes.IsDisrupted())
	}

	services := princes.Services()
	if len(services) != 2 || services[0].ServiceName() != "9" || services[1].ServiceName() != "10" {
		t.Fatalf("Expected services [9 10], got %d services", len(services))
	}

	nine := services[0]
	if !nine.IsDiverted() || nine.IsDisrupted() {
		t.Error("Expected service 9 diverted but not disrupted")
	}
	bus := nine.NextBus()
	if !bus.IsDelayed() || !bus.IsPartRoute() || bus.IsEstimatedTime() {
		t.Error("Expected delayed part-route bus on service 9")
	}

	ten := services[1]
	if ten.Operator() != "LB" || ten.Route() != "Western Harbour - Torphin" || !ten.IsDisrupted() {
		t.Error("Unexpected service 10 attributes")
	}
	buses := ten.Buses()
	if buses[0].JourneyID() != "1001" || buses[1].JourneyID() != "1002" {
		t.Error("Expected buses sorted by departure time")
	}
	if !buses[1].IsEstimatedTime() {
		t.Error("Expected second bus to be an estimate")
	}
	wantDeparture := time.Date(2024, 5, 10, 17, 2, 0, 0, time.UTC)
	if !buses[0].DepartureTime().Equal(wantDeparture) {
		t.Errorf("Expected departure %v, got %v", wantDeparture, buses[0].DepartureTime())
	}

	ocean := times.BusStop("36237926").Service("22").NextBus()
	if !ocean.IsTerminus() || !ocean.IsDiverted() {
		t.Error("Expected diverted terminus departure at Ocean Terminal")
	}
}

func TestParseBusTimesEmpty(t *testing.T) {
	times, err := testParser(time.Now()).ParseBusTimes(strings.NewReader(`{"busTimes": []}`))
	if err != nil {
		t.Fatalf("ParseBusTimes: %v", err)
	}
	if !times.IsEmpty() {
		t.Errorf("Expected empty times, got %d stops", times.Size())
	}
}

func TestParseBusTimesFaults(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"INVALID_APP_KEY", ErrAuthentication},
		{"INVALID_PARAMETER", ErrInvalidParameter},
		{"PROCESSING_ERROR", ErrServerError},
		{"SYSTEM_OVERLOAD", ErrSystemOverloaded},
		{"SYSTEM_MAINTENANCE", ErrMaintenance},
		{"SOMETHING_NEW", ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			body := `{"faultcode": "` + tt.code + `", "faultstring": "nope"}`
			_, err := testParser(time.Now()).ParseBusTimes(strings.NewReader(body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseBusTimesInvalidData(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"busTimes": [{"stopId": "1", "mnemoService": "10", "timeDatas": [{"minutes": 3, "nameDest": ""}]}]}`,
		`{"busTimes": [{"stopId": "", "mnemoService": "10", "timeDatas": []}]}`,
		`{"busTimes": [{"stopId": "1", "mnemoService": "10", "timeDatas": [{"minutes": 3, "nameDest": "Leith", "terminus": ""}]}]}`,
	}
	for _, body := range bodies {
		_, err := testParser(time.Now()).ParseBusTimes(strings.NewReader(body))
		if !errors.Is(err, ErrInvalidData) {
			t.Errorf("Expected ErrInvalidData for %q, got %v", body, err)
		}
	}
}

func TestParseJourneyTimes(t *testing.T) {
	now := time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)
	journey, err := testParser(now).ParseJourneyTimes(strings.NewReader(journeyTimesJSON))
	if err != nil {
		t.Fatalf("ParseJourneyTimes: %v", err)
	}

	if journey.JourneyID() != "1001" || journey.ServiceName() != "10" || journey.Destination() != "Torphin" {
		t.Errorf("Unexpected journey %s %s %s", journey.JourneyID(), journey.ServiceName(), journey.Destination())
	}
	if !journey.IsServiceDiverted() {
		t.Error("Expected service diversion")
	}

	departures := journey.Departures()
	if len(departures) != 3 {
		t.Fatalf("Expected 3 departures, got %d", len(departures))
	}
	for i, d := range departures {
		if d.Order() != i+1 {
			t.Errorf("Expected departures sorted by order, position %d has order %d", i, d.Order())
		}
	}
	if !departures[1].IsBusStopDisrupted() || !departures[1].IsEstimatedTime() {
		t.Error("Expected Lothian Road to be disrupted and estimated")
	}
	if !departures[2].IsTerminus() {
		t.Error("Expected last call to be the terminus")
	}
}

func TestParseJourneyTimesErrors(t *testing.T) {
	p := testParser(time.Now())

	if _, err := p.ParseJourneyTimes(strings.NewReader(`{"journeyTimes": []}`)); !errors.Is(err, ErrInvalidData) {
		t.Errorf("Expected ErrInvalidData for empty journey list, got %v", err)
	}
	if _, err := p.ParseJourneyTimes(strings.NewReader(`{"faultcode": "INVALID_APP_KEY"}`)); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
	if _, err := p.ParseJourneyTimes(strings.NewReader(`{"journeyTimes": [{"journeyId": "", "mnemoService": "10", "nameDest": "X"}]}`)); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected wrapped ErrInvalidArgument, got %v", err)
	}
	if _, err := p.ParseJourneyTimes(strings.NewReader(`{"journeyTimes": [{"journeyId": "7", "mnemoService": "10", "nameDest": "X", "journeyTimeDatas": []}]}`)); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Expected wrapped ErrInvalidArgument for a missing terminus, got %v", err)
	}
}
