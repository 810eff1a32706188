package api

import (
	"time"

	model "github.com/mybus-data/pkg/livetimes"
)

type liveTimesResponse struct {
	ReceiveTime      time.Time          `json:"receive_time"`
	GlobalDisruption bool               `json:"global_disruption"`
	Stops            []liveStopResponse `json:"stops"`
}

type liveStopResponse struct {
	StopCode  string                `json:"stop_code"`
	StopName  string                `json:"stop_name"`
	Disrupted bool                  `json:"disrupted"`
	Services  []liveServiceResponse `json:"services"`
}

type liveServiceResponse struct {
	ServiceName string            `json:"service_name"`
	Operator    string            `json:"operator,omitempty"`
	Route       string            `json:"route,omitempty"`
	Disrupted   bool              `json:"disrupted"`
	Diverted    bool              `json:"diverted"`
	Buses       []liveBusResponse `json:"buses"`
}

type liveBusResponse struct {
	Destination      string    `json:"destination"`
	DepartureTime    time.Time `json:"departure_time"`
	DepartureMinutes int       `json:"departure_minutes"`
	Terminus         string    `json:"terminus,omitempty"`
	JourneyID        string    `json:"journey_id,omitempty"`
	EstimatedTime    bool      `json:"estimated_time"`
	Delayed          bool      `json:"delayed"`
	Diverted         bool      `json:"diverted"`
	Terminates       bool      `json:"terminates"`
	PartRoute        bool      `json:"part_route"`
}

type journeyResponse struct {
	JourneyID        string                     `json:"journey_id"`
	ServiceName      string                     `json:"service_name"`
	Destination      string                     `json:"destination"`
	Terminus         string                     `json:"terminus,omitempty"`
	Operator         string                     `json:"operator,omitempty"`
	Route            string                     `json:"route,omitempty"`
	GlobalDisruption bool                       `json:"global_disruption"`
	ServiceDisrupted bool                       `json:"service_disrupted"`
	ServiceDiverted  bool                       `json:"service_diverted"`
	ReceiveTime      time.Time                  `json:"receive_time"`
	Departures       []journeyDepartureResponse `json:"departures"`
}

type journeyDepartureResponse struct {
	StopCode         string    `json:"stop_code"`
	StopName         string    `json:"stop_name"`
	Order            int       `json:"order"`
	DepartureTime    time.Time `json:"departure_time"`
	DepartureMinutes int       `json:"departure_minutes"`
	StopDisrupted    bool      `json:"stop_disrupted"`
	EstimatedTime    bool      `json:"estimated_time"`
	Delayed          bool      `json:"delayed"`
	Diverted         bool      `json:"diverted"`
	Terminates       bool      `json:"terminates"`
	PartRoute        bool      `json:"part_route"`
}

func newLiveTimesResponse(times *model.LiveBusTimes) liveTimesResponse {
	resp := liveTimesResponse{
		ReceiveTime:      times.ReceiveTime(),
		GlobalDisruption: times.HasGlobalDisruption(),
		Stops:            make([]liveStopResponse, 0, times.Size()),
	}
	for _, code := range times.StopCodes() {
		stop := times.BusStop(code)
		stopResp := liveStopResponse{
			StopCode:  stop.StopCode(),
			StopName:  stop.StopName(),
			Disrupted: stop.IsDisrupted(),
			Services:  make([]liveServiceResponse, 0, len(stop.Services())),
		}
		for _, service := range stop.Services() {
			serviceResp := liveServiceResponse{
				ServiceName: service.ServiceName(),
				Operator:    service.Operator(),
				Route:       service.Route(),
				Disrupted:   service.IsDisrupted(),
				Diverted:    service.IsDiverted(),
				Buses:       make([]liveBusResponse, 0, len(service.Buses())),
			}
			for _, bus := range service.Buses() {
				serviceResp.Buses = append(serviceResp.Buses, liveBusResponse{
					Destination:      bus.Destination(),
					DepartureTime:    bus.DepartureTime(),
					DepartureMinutes: bus.DepartureMinutes(),
					Terminus:         bus.Terminus(),
					JourneyID:        bus.JourneyID(),
					EstimatedTime:    bus.IsEstimatedTime(),
					Delayed:          bus.IsDelayed(),
					Diverted:         bus.IsDiverted(),
					Terminates:       bus.IsTerminus(),
					PartRoute:        bus.IsPartRoute(),
				})
			}
			stopResp.Services = append(stopResp.Services, serviceResp)
		}
		resp.Stops = append(resp.Stops, stopResp)
	}
	return resp
}

func newJourneyResponse(j *model.Journey) journeyResponse {
	resp := journeyResponse{
		JourneyID:        j.JourneyID(),
		ServiceName:      j.ServiceName(),
		Destination:      j.Destination(),
		Terminus:         j.Terminus(),
		Operator:         j.Operator(),
		Route:            j.Route(),
		GlobalDisruption: j.HasGlobalDisruption(),
		ServiceDisrupted: j.IsServiceDisrupted(),
		ServiceDiverted:  j.IsServiceDiverted(),
		ReceiveTime:      j.ReceiveTime(),
		Departures:       make([]journeyDepartureResponse, 0, len(j.Departures())),
	}
	for _, d := range j.Departures() {
		resp.Departures = append(resp.Departures, journeyDepartureResponse{
			StopCode:         d.StopCode(),
			StopName:         d.StopName(),
			Order:            d.Order(),
			DepartureTime:    d.DepartureTime(),
			DepartureMinutes: d.DepartureMinutes(),
			StopDisrupted:    d.IsBusStopDisrupted(),
			EstimatedTime:    d.IsEstimatedTime(),
			Delayed:          d.IsDelayed(),
			Diverted:         d.IsDiverted(),
			Terminates:       d.IsTerminus(),
			PartRoute:        d.IsPartRoute(),
		})
	}
	return resp
}
