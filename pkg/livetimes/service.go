package livetimes

import (
	"strings"
)

// LiveBusService groups the upcoming buses of one service at one stop.
type LiveBusService struct {
	serviceName string
	operator    string
	route       string
	buses       []*LiveBus
	disrupted   bool
	diverted    bool
}

// LiveBusServiceBuilder collects the fields of a LiveBusService. ServiceName
// is required and Buses must be non-nil (it may be empty).
type LiveBusServiceBuilder struct {
	ServiceName string
	Operator    string
	Route       string
	Buses       []*LiveBus
	Disrupted   bool
	Diverted    bool
}

func (b LiveBusServiceBuilder) Build() (*LiveBusService, error) {
	if strings.TrimSpace(b.ServiceName) == "" {
		return nil, invalid("the service name must not be empty")
	}
	if b.Buses == nil {
		return nil, invalid("the buses must not be nil")
	}
	for _, bus := range b.Buses {
		if bus == nil {
			return nil, invalid("service %s has a nil bus", b.ServiceName)
		}
	}

	buses := make([]*LiveBus, len(b.Buses))
	copy(buses, b.Buses)
	SortLiveBuses(buses)

	return &LiveBusService{
		serviceName: b.ServiceName,
		operator:    b.Operator,
		route:       b.Route,
		buses:       buses,
		disrupted:   b.Disrupted,
		diverted:    b.Diverted,
	}, nil
}

func (s *LiveBusService) ServiceName() string { return s.serviceName }
func (s *LiveBusService) Operator() string    { return s.operator }
func (s *LiveBusService) Route() string       { return s.route }
func (s *LiveBusService) IsDisrupted() bool   { return s.disrupted }
func (s *LiveBusService) IsDiverted() bool    { return s.diverted }

// Buses returns the departures, earliest first.
func (s *LiveBusService) Buses() []*LiveBus {
	out := make([]*LiveBus, len(s.buses))
	copy(out, s.buses)
	return out
}

// NextBus returns the earliest departure, or nil if there is none.
func (s *LiveBusService) NextBus() *LiveBus {
	if len(s.buses) == 0 {
		return nil
	}
	return s.buses[0]
}
