package livetimes

import (
	"strings"
	"time"
)

// LiveBus is a single predicted departure of a service from a stop.
type LiveBus struct {
	destination      string
	departureTime    time.Time
	departureMinutes int
	terminus         string
	journeyID        string
	estimatedTime    bool
	delayed          bool
	diverted         bool
	isTerminus       bool
	partRoute        bool
}

// LiveBusBuilder collects the fields of a LiveBus. Destination, Terminus and
// DepartureTime are required.
type LiveBusBuilder struct {
	Destination      string
	DepartureTime    time.Time
	DepartureMinutes int
	Terminus         string
	JourneyID        string
	EstimatedTime    bool
	Delayed          bool
	Diverted         bool
	Terminates       bool
	PartRoute        bool
}

func (b LiveBusBuilder) Build() (*LiveBus, error) {
	if strings.TrimSpace(b.Destination) == "" {
		return nil, invalid("the destination must not be empty")
	}
	if strings.TrimSpace(b.Terminus) == "" {
		return nil, invalid("the terminus must not be empty")
	}
	if b.DepartureTime.IsZero() {
		return nil, invalid("the departure time must be set")
	}

	return &LiveBus{
		destination:      b.Destination,
		departureTime:    b.DepartureTime,
		departureMinutes: b.DepartureMinutes,
		terminus:         b.Terminus,
		journeyID:        b.JourneyID,
		estimatedTime:    b.EstimatedTime,
		delayed:          b.Delayed,
		diverted:         b.Diverted,
		isTerminus:       b.Terminates,
		partRoute:        b.PartRoute,
	}, nil
}

func (b *LiveBus) Destination() string      { return b.destination }
func (b *LiveBus) DepartureTime() time.Time { return b.departureTime }
func (b *LiveBus) DepartureMinutes() int    { return b.departureMinutes }
func (b *LiveBus) Terminus() string         { return b.terminus }
func (b *LiveBus) JourneyID() string        { return b.journeyID }
func (b *LiveBus) IsEstimatedTime() bool    { return b.estimatedTime }
func (b *LiveBus) IsDelayed() bool          { return b.delayed }
func (b *LiveBus) IsDiverted() bool         { return b.diverted }
func (b *LiveBus) IsTerminus() bool         { return b.isTerminus }
func (b *LiveBus) IsPartRoute() bool        { return b.partRoute }

// MinutesUntil is the whole number of minutes from now until departure,
// never negative.
func (b *LiveBus) MinutesUntil(now time.Time) int {
	return minutesUntil(b.departureTime, now)
}
