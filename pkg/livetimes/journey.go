package livetimes

import (
	"strings"
	"time"
)

// JourneyDeparture is one call of a journey at a stop.
type JourneyDeparture struct {
	stopCode         string
	stopName         string
	departureTime    time.Time
	departureMinutes int
	order            int
	stopDisrupted    bool
	estimatedTime    bool
	delayed          bool
	diverted         bool
	isTerminus       bool
	partRoute        bool
}

// JourneyDepartureBuilder collects the fields of a JourneyDeparture. StopCode
// and DepartureTime are required; Order is the position along the journey.
type JourneyDepartureBuilder struct {
	StopCode         string
	StopName         string
	DepartureTime    time.Time
	DepartureMinutes int
	Order            int
	StopDisrupted    bool
	EstimatedTime    bool
	Delayed          bool
	Diverted         bool
	Terminates       bool
	PartRoute        bool
}

func (b JourneyDepartureBuilder) Build() (*JourneyDeparture, error) {
	if strings.TrimSpace(b.StopCode) == "" {
		return nil, invalid("the stop code must not be empty")
	}
	if b.DepartureTime.IsZero() {
		return nil, invalid("the departure time must be set")
	}

	return &JourneyDeparture{
		stopCode:         b.StopCode,
		stopName:         b.StopName,
		departureTime:    b.DepartureTime,
		departureMinutes: b.DepartureMinutes,
		order:            b.Order,
		stopDisrupted:    b.StopDisrupted,
		estimatedTime:    b.EstimatedTime,
		delayed:          b.Delayed,
		diverted:         b.Diverted,
		isTerminus:       b.Terminates,
		partRoute:        b.PartRoute,
	}, nil
}

func (d *JourneyDeparture) StopCode() string         { return d.stopCode }
func (d *JourneyDeparture) StopName() string         { return d.stopName }
func (d *JourneyDeparture) DepartureTime() time.Time { return d.departureTime }
func (d *JourneyDeparture) DepartureMinutes() int    { return d.departureMinutes }
func (d *JourneyDeparture) Order() int               { return d.order }
func (d *JourneyDeparture) IsBusStopDisrupted() bool { return d.stopDisrupted }
func (d *JourneyDeparture) IsEstimatedTime() bool    { return d.estimatedTime }
func (d *JourneyDeparture) IsDelayed() bool          { return d.delayed }
func (d *JourneyDeparture) IsDiverted() bool         { return d.diverted }
func (d *JourneyDeparture) IsTerminus() bool         { return d.isTerminus }
func (d *JourneyDeparture) IsPartRoute() bool        { return d.partRoute }

// Journey is the full list of calls for a single vehicle journey.
type Journey struct {
	journeyID        string
	serviceName      string
	destination      string
	terminus         string
	operator         string
	route            string
	departures       []*JourneyDeparture
	globalDisruption bool
	serviceDisrupted bool
	serviceDiverted  bool
	receiveTime      time.Time
}

// JourneyBuilder collects the fields of a Journey. JourneyID, ServiceName,
// Destination and Terminus are required and Departures must be non-nil.
type JourneyBuilder struct {
	JourneyID        string
	ServiceName      string
	Destination      string
	Terminus         string
	Operator         string
	Route            string
	Departures       []*JourneyDeparture
	GlobalDisruption bool
	ServiceDisrupted bool
	ServiceDiverted  bool
	ReceiveTime      time.Time
}

func (b JourneyBuilder) Build() (*Journey, error) {
	if strings.TrimSpace(b.JourneyID) == "" {
		return nil, invalid("the journey id must not be empty")
	}
	if strings.TrimSpace(b.ServiceName) == "" {
		return nil, invalid("the service name must not be empty")
	}
	if strings.TrimSpace(b.Destination) == "" {
		return nil, invalid("the destination must not be empty")
	}
	if strings.TrimSpace(b.Terminus) == "" {
		return nil, invalid("the terminus must not be empty")
	}
	if b.Departures == nil {
		return nil, invalid("the departures must not be nil")
	}
	for _, d := range b.Departures {
		if d == nil {
			return nil, invalid("journey %s has a nil departure", b.JourneyID)
		}
	}

	departures := make([]*JourneyDeparture, len(b.Departures))
	copy(departures, b.Departures)
	SortJourneyDepartures(departures)

	return &Journey{
		journeyID:        b.JourneyID,
		serviceName:      b.ServiceName,
		destination:      b.Destination,
		terminus:         b.Terminus,
		operator:         b.Operator,
		route:            b.Route,
		departures:       departures,
		globalDisruption: b.GlobalDisruption,
		serviceDisrupted: b.ServiceDisrupted,
		serviceDiverted:  b.ServiceDiverted,
		receiveTime:      b.ReceiveTime,
	}, nil
}

func (j *Journey) JourneyID() string         { return j.journeyID }
func (j *Journey) ServiceName() string       { return j.serviceName }
func (j *Journey) Destination() string       { return j.destination }
func (j *Journey) Terminus() string          { return j.terminus }
func (j *Journey) Operator() string          { return j.operator }
func (j *Journey) Route() string             { return j.route }
func (j *Journey) HasGlobalDisruption() bool { return j.globalDisruption }
func (j *Journey) IsServiceDisrupted() bool  { return j.serviceDisrupted }
func (j *Journey) IsServiceDiverted() bool   { return j.serviceDiverted }
func (j *Journey) ReceiveTime() time.Time    { return j.receiveTime }

// Departures returns the calls in journey order.
func (j *Journey) Departures() []*JourneyDeparture {
	out := make([]*JourneyDeparture, len(j.departures))
	copy(out, j.departures)
	return out
}
