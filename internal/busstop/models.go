package busstop

import "time"

// VersionInfo describes the reference database currently in place.
type VersionInfo struct {
	TopologyID string    `json:"topology_id"`
	SchemaName string    `json:"schema_name"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BusStop struct {
	StopCode    string   `json:"stop_code"`
	StopName    string   `json:"stop_name"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Orientation int      `json:"orientation"`
	Locality    string   `json:"locality,omitempty"`
	Services    []string `json:"services"`
}

// NearbyStop is a stop with its distance from the query point.
type NearbyStop struct {
	BusStop
	DistanceMetres float64 `json:"distance_metres"`
}

type Service struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Colour      string `json:"colour,omitempty"`
}

// ServicePoint is a vertex of a service's route line. StopCode is empty for
// points that are not stops.
type ServicePoint struct {
	ServiceName string  `json:"service_name"`
	StopCode    string  `json:"stop_code,omitempty"`
	Order       int     `json:"order"`
	Chainage    int     `json:"chainage"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// NearbyQuery selects stops within RadiusMetres of a point, optionally only
// those served by one of Services.
type NearbyQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMetres float64
	Services     []string
	Limit        int
}
