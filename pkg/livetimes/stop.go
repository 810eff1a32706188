package livetimes

import (
	"strings"
)

// LiveBusStop is the live departure board for one stop.
type LiveBusStop struct {
	stopCode  string
	stopName  string
	services  []*LiveBusService
	disrupted bool
}

// LiveBusStopBuilder collects the fields of a LiveBusStop. StopCode is
// required and Services must be non-nil.
type LiveBusStopBuilder struct {
	StopCode  string
	StopName  string
	Services  []*LiveBusService
	Disrupted bool
}

func (b LiveBusStopBuilder) Build() (*LiveBusStop, error) {
	if strings.TrimSpace(b.StopCode) == "" {
		return nil, invalid("the stop code must not be empty")
	}
	if b.Services == nil {
		return nil, invalid("the services must not be nil")
	}
	for _, s := range b.Services {
		if s == nil {
			return nil, invalid("stop %s has a nil service", b.StopCode)
		}
	}

	services := make([]*LiveBusService, len(b.Services))
	copy(services, b.Services)
	SortLiveBusServices(services)

	return &LiveBusStop{
		stopCode:  b.StopCode,
		stopName:  b.StopName,
		services:  services,
		disrupted: b.Disrupted,
	}, nil
}

func (s *LiveBusStop) StopCode() string  { return s.stopCode }
func (s *LiveBusStop) StopName() string  { return s.stopName }
func (s *LiveBusStop) IsDisrupted() bool { return s.disrupted }

// Services returns the services at the stop in service name order.
func (s *LiveBusStop) Services() []*LiveBusService {
	out := make([]*LiveBusService, len(s.services))
	copy(out, s.services)
	return out
}

// Service returns the named service, or nil.
func (s *LiveBusStop) Service(name string) *LiveBusService {
	for _, svc := range s.services {
		if svc.serviceName == name {
			return svc
		}
	}
	return nil
}
