package livetimes

import (
	"slices"
	"time"
)

// LiveBusTimes is one live times response covering one or more stops.
type LiveBusTimes struct {
	busStops         map[string]*LiveBusStop
	receiveTime      time.Time
	globalDisruption bool
}

// LiveBusTimesBuilder collects the fields of a LiveBusTimes. BusStops must be
// non-nil and every entry must be keyed by its own stop code.
type LiveBusTimesBuilder struct {
	BusStops         map[string]*LiveBusStop
	ReceiveTime      time.Time
	GlobalDisruption bool
}

func (b LiveBusTimesBuilder) Build() (*LiveBusTimes, error) {
	if b.BusStops == nil {
		return nil, invalid("the bus stops must not be nil")
	}

	stops := make(map[string]*LiveBusStop, len(b.BusStops))
	for code, stop := range b.BusStops {
		if stop == nil {
			return nil, invalid("stop %s is nil", code)
		}
		if stop.stopCode != code {
			return nil, invalid("stop %s is keyed as %s", stop.stopCode, code)
		}
		stops[code] = stop
	}

	return &LiveBusTimes{
		busStops:         stops,
		receiveTime:      b.ReceiveTime,
		globalDisruption: b.GlobalDisruption,
	}, nil
}

func (t *LiveBusTimes) ReceiveTime() time.Time    { return t.receiveTime }
func (t *LiveBusTimes) HasGlobalDisruption() bool { return t.globalDisruption }
func (t *LiveBusTimes) IsEmpty() bool             { return len(t.busStops) == 0 }
func (t *LiveBusTimes) Size() int                 { return len(t.busStops) }

// BusStop returns the stop with the given code, or nil.
func (t *LiveBusTimes) BusStop(stopCode string) *LiveBusStop {
	return t.busStops[stopCode]
}

// StopCodes returns the stop codes in ascending order.
func (t *LiveBusTimes) StopCodes() []string {
	codes := make([]string, 0, len(t.busStops))
	for code := range t.busStops {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Merge combines several responses. The earliest receive time is kept so the
// result never looks fresher than its oldest part; later stops win on clashes.
func Merge(times ...*LiveBusTimes) (*LiveBusTimes, error) {
	b := LiveBusTimesBuilder{BusStops: make(map[string]*LiveBusStop)}
	for _, t := range times {
		if t == nil {
			continue
		}
		for code, stop := range t.busStops {
			b.BusStops[code] = stop
		}
		if b.ReceiveTime.IsZero() || t.receiveTime.Before(b.ReceiveTime) {
			b.ReceiveTime = t.receiveTime
		}
		b.GlobalDisruption = b.GlobalDisruption || t.globalDisruption
	}
	return b.Build()
}
