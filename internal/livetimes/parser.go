package livetimes

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	model "github.com/mybus-data/pkg/livetimes"
)

// Parser turns a bus tracker response body into model objects.
type Parser interface {
	ParseBusTimes(r io.Reader) (*model.LiveBusTimes, error)
	ParseJourneyTimes(r io.Reader) (*model.Journey, error)
}

// Reliability and type flags on each departure.
const (
	reliabilityDelayed   = "B"
	reliabilityDiverted  = "V"
	reliabilityEstimated = "H"

	typeTerminus  = "D"
	typePartRoute = "P"
)

type faultBody struct {
	FaultCode   string `json:"faultcode"`
	FaultString string `json:"faultstring"`
}

type busTimesBody struct {
	faultBody
	BusTimes         []busTimeJSON `json:"busTimes"`
	GlobalDisruption bool          `json:"globalDisruption"`
}

type busTimeJSON struct {
	OperatorID        string         `json:"operatorId"`
	StopID            string         `json:"stopId"`
	StopName          string         `json:"stopName"`
	RefService        string         `json:"refService"`
	MnemoService      string         `json:"mnemoService"`
	NameService       string         `json:"nameService"`
	BusStopDisruption bool           `json:"busStopDisruption"`
	ServiceDisruption bool           `json:"serviceDisruption"`
	ServiceDiversion  bool           `json:"serviceDiversion"`
	TimeDatas         []timeDataJSON `json:"timeDatas"`
}

type timeDataJSON struct {
	Day         int    `json:"day"`
	Time        string `json:"time"`
	Minutes     int    `json:"minutes"`
	Reliability string `json:"reliability"`
	Type        string `json:"type"`
	Terminus    string `json:"terminus"`
	JourneyID   string `json:"journeyId"`
	NameDest    string `json:"nameDest"`
}

type journeyTimesBody struct {
	faultBody
	JourneyTimes []journeyTimeJSON `json:"journeyTimes"`
}

type journeyTimeJSON struct {
	JourneyID         string                `json:"journeyId"`
	OperatorID        string                `json:"operatorId"`
	MnemoService      string                `json:"mnemoService"`
	NameService       string                `json:"nameService"`
	NameDest          string                `json:"nameDest"`
	Terminus          string                `json:"terminus"`
	GlobalDisruption  bool                  `json:"globalDisruption"`
	ServiceDisruption bool                  `json:"serviceDisruption"`
	ServiceDiversion  bool                  `json:"serviceDiversion"`
	JourneyTimeDatas  []journeyTimeDataJSON `json:"journeyTimeDatas"`
}

type journeyTimeDataJSON struct {
	Order             int    `json:"order"`
	StopID            string `json:"stopId"`
	StopName          string `json:"stopName"`
	Day               int    `json:"day"`
	Time              string `json:"time"`
	Minutes           int    `json:"minutes"`
	Reliability       string `json:"reliability"`
	Type              string `json:"type"`
	BusStopDisruption bool   `json:"busStopDisruption"`
}

// JSONParser reads the bus tracker JSON format. Departure times are computed
// from the minutes field relative to the time of parsing.
type JSONParser struct {
	now func() time.Time
}

func NewJSONParser() *JSONParser {
	return &JSONParser{now: time.Now}
}

func (p *JSONParser) ParseBusTimes(r io.Reader) (*model.LiveBusTimes, error) {
	var body busTimesBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if body.FaultCode != "" {
		return nil, faultError(body.FaultCode, body.FaultString)
	}

	receiveTime := p.now()

	type stopAcc struct {
		name      string
		disrupted bool
		services  []*model.LiveBusService
	}
	stops := map[string]*stopAcc{}

	for _, bt := range body.BusTimes {
		buses := make([]*model.LiveBus, 0, len(bt.TimeDatas))
		for _, td := range bt.TimeDatas {
			bus, err := model.LiveBusBuilder{
				Destination:      td.NameDest,
				DepartureTime:    departureTime(receiveTime, td.Minutes),
				DepartureMinutes: td.Minutes,
				Terminus:         td.Terminus,
				JourneyID:        td.JourneyID,
				EstimatedTime:    td.Reliability == reliabilityEstimated,
				Delayed:          td.Reliability == reliabilityDelayed,
				Diverted:         td.Reliability == reliabilityDiverted,
				Terminates:       td.Type == typeTerminus,
				PartRoute:        td.Type == typePartRoute,
			}.Build()
			if err != nil {
				return nil, fmt.Errorf("%w: stop %s service %s: %w", ErrInvalidData, bt.StopID, bt.MnemoService, err)
			}
			buses = append(buses, bus)
		}

		service, err := model.LiveBusServiceBuilder{
			ServiceName: bt.MnemoService,
			Operator:    bt.OperatorID,
			Route:       bt.NameService,
			Buses:       buses,
			Disrupted:   bt.ServiceDisruption,
			Diverted:    bt.ServiceDiversion,
		}.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: stop %s: %w", ErrInvalidData, bt.StopID, err)
		}

		acc, ok := stops[bt.StopID]
		if !ok {
			acc = &stopAcc{name: bt.StopName}
			stops[bt.StopID] = acc
		}
		acc.disrupted = acc.disrupted || bt.BusStopDisruption
		acc.services = append(acc.services, service)
	}

	busStops := make(map[string]*model.LiveBusStop, len(stops))
	for code, acc := range stops {
		stop, err := model.LiveBusStopBuilder{
			StopCode:  code,
			StopName:  acc.name,
			Services:  acc.services,
			Disrupted: acc.disrupted,
		}.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
		}
		busStops[code] = stop
	}

	times, err := model.LiveBusTimesBuilder{
		BusStops:         busStops,
		ReceiveTime:      receiveTime,
		GlobalDisruption: body.GlobalDisruption,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return times, nil
}

func (p *JSONParser) ParseJourneyTimes(r io.Reader) (*model.Journey, error) {
	var body journeyTimesBody
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if body.FaultCode != "" {
		return nil, faultError(body.FaultCode, body.FaultString)
	}
	if len(body.JourneyTimes) == 0 {
		return nil, fmt.Errorf("%w: no journey in response", ErrInvalidData)
	}

	receiveTime := p.now()
	jt := body.JourneyTimes[0]

	departures := make([]*model.JourneyDeparture, 0, len(jt.JourneyTimeDatas))
	for _, d := range jt.JourneyTimeDatas {
		dep, err := model.JourneyDepartureBuilder{
			StopCode:         d.StopID,
			StopName:         d.StopName,
			DepartureTime:    departureTime(receiveTime, d.Minutes),
			DepartureMinutes: d.Minutes,
			Order:            d.Order,
			StopDisrupted:    d.BusStopDisruption,
			EstimatedTime:    d.Reliability == reliabilityEstimated,
			Delayed:          d.Reliability == reliabilityDelayed,
			Diverted:         d.Reliability == reliabilityDiverted,
			Terminates:       d.Type == typeTerminus,
			PartRoute:        d.Type == typePartRoute,
		}.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: journey %s: %w", ErrInvalidData, jt.JourneyID, err)
		}
		departures = append(departures, dep)
	}

	journey, err := model.JourneyBuilder{
		JourneyID:        jt.JourneyID,
		ServiceName:      jt.MnemoService,
		Destination:      jt.NameDest,
		Terminus:         jt.Terminus,
		Operator:         jt.OperatorID,
		Route:            jt.NameService,
		Departures:       departures,
		GlobalDisruption: jt.GlobalDisruption,
		ServiceDisrupted: jt.ServiceDisruption,
		ServiceDiverted:  jt.ServiceDiversion,
		ReceiveTime:      receiveTime,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return journey, nil
}

func departureTime(receiveTime time.Time, minutes int) time.Time {
	return receiveTime.Truncate(time.Minute).Add(time.Duration(minutes) * time.Minute)
}
