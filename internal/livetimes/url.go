package livetimes

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// MaxStopsPerRequest is the most stop codes getBusTimes accepts at once.
const MaxStopsPerRequest = 6

// URLBuilder builds bus tracker request URLs. The API key is never sent in
// the clear: the service expects md5(key + UTC yyyyMMddHH).
type URLBuilder struct {
	baseURL *url.URL
	apiKey  string
	now     func() time.Time
}

func NewURLBuilder(baseURL, apiKey string) (*URLBuilder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing bus tracker url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bus tracker url must be absolute: %q", baseURL)
	}
	return &URLBuilder{baseURL: u, apiKey: apiKey, now: time.Now}, nil
}

// BusTimesURL asks for the next departures at up to MaxStopsPerRequest stops.
func (b *URLBuilder) BusTimesURL(stopCodes []string, departures int) (string, error) {
	if len(stopCodes) == 0 {
		return "", fmt.Errorf("%w: no stop codes", ErrInvalidParameter)
	}
	if len(stopCodes) > MaxStopsPerRequest {
		return "", fmt.Errorf("%w: %d stop codes, at most %d allowed", ErrInvalidParameter, len(stopCodes), MaxStopsPerRequest)
	}

	q := b.baseQuery("getBusTimes")
	for i, code := range stopCodes {
		if code == "" {
			return "", fmt.Errorf("%w: empty stop code", ErrInvalidParameter)
		}
		q.Set("stopId"+strconv.Itoa(i+1), code)
	}
	if departures > 0 {
		q.Set("nb", strconv.Itoa(departures))
	}
	return b.encode(q), nil
}

// JourneyTimesURL asks for the remaining calls of a journey from stopCode.
func (b *URLBuilder) JourneyTimesURL(stopCode, journeyID string) (string, error) {
	if stopCode == "" || journeyID == "" {
		return "", fmt.Errorf("%w: stop code and journey id are required", ErrInvalidParameter)
	}

	q := b.baseQuery("getJourneyTimes")
	q.Set("stopId", stopCode)
	q.Set("journeyId", journeyID)
	return b.encode(q), nil
}

// HashedKey returns the key sent for the current hour.
func (b *URLBuilder) HashedKey() string {
	sum := md5.Sum([]byte(b.apiKey + b.now().UTC().Format("2006010215")))
	return hex.EncodeToString(sum[:])
}

func (b *URLBuilder) baseQuery(function string) url.Values {
	q := url.Values{}
	q.Set("module", "json")
	q.Set("key", b.HashedKey())
	q.Set("function", function)
	return q
}

func (b *URLBuilder) encode(q url.Values) string {
	u := *b.baseURL
	u.RawQuery = q.Encode()
	return u.String()
}
