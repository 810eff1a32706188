package livetimes

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// CompareServiceNames orders service names the way riders expect: runs of
// digits compare numerically, so "9" < "10" < "X5". Names that compare equal
// chunk by chunk fall back to byte order.
func CompareServiceNames(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, ni := chunk(a, i)
		cb, nj := chunk(b, j)
		i, j = ni, nj

		var c int
		if isDigit(ca[0]) && isDigit(cb[0]) {
			c = compareNumeric(ca, cb)
		} else {
			c = strings.Compare(ca, cb)
		}
		if c != 0 {
			return c
		}
	}

	switch {
	case i < len(a):
		return 1
	case j < len(b):
		return -1
	}
	return strings.Compare(a, b)
}

// chunk returns the run of digits or non-digits starting at i.
func chunk(s string, i int) (string, int) {
	digit := isDigit(s[i])
	end := i + 1
	for end < len(s) && isDigit(s[end]) == digit {
		end++
	}
	return s[i:end], end
}

func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	// "007" after "7" so the order is total.
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// SortServiceNames sorts names in place with CompareServiceNames.
func SortServiceNames(names []string) {
	slices.SortStableFunc(names, CompareServiceNames)
}

// SortLiveBuses orders buses by departure time, earliest first.
func SortLiveBuses(buses []*LiveBus) {
	slices.SortStableFunc(buses, func(a, b *LiveBus) int {
		return a.departureTime.Compare(b.departureTime)
	})
}

// SortLiveBusServices orders services by name with CompareServiceNames.
func SortLiveBusServices(services []*LiveBusService) {
	slices.SortStableFunc(services, func(a, b *LiveBusService) int {
		return CompareServiceNames(a.serviceName, b.serviceName)
	})
}

// SortJourneyDepartures orders departures by their sequence number.
func SortJourneyDepartures(departures []*JourneyDeparture) {
	slices.SortStableFunc(departures, func(a, b *JourneyDeparture) int {
		return cmp.Compare(a.order, b.order)
	})
}

func minutesUntil(t, now time.Time) int {
	if t.Before(now) {
		return 0
	}
	return int(t.Sub(now) / time.Minute)
}
