package busstop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/mybus-data/pkg/livetimes"
)

// Repository is the read surface over the reference database.
type Repository interface {
	BusStop(ctx context.Context, stopCode string) (*BusStop, error)
	BusStops(ctx context.Context, stopCodes []string) ([]BusStop, error)
	SearchStops(ctx context.Context, term string, limit int) ([]BusStop, error)
	NearbyStops(ctx context.Context, q NearbyQuery) ([]NearbyStop, error)
	ServicesForStop(ctx context.Context, stopCode string) ([]string, error)
	Services(ctx context.Context) ([]Service, error)
	ServicePoints(ctx context.Context, serviceName string) ([]ServicePoint, error)
	CurrentVersion(ctx context.Context) (VersionInfo, error)
}

var _ Repository = (*Store)(nil)

const busStopColumns = `stopCode, stopName, latitude, longitude, orientation, locality, serviceListing`

func (s *Store) BusStop(ctx context.Context, stopCode string) (*BusStop, error) {
	var stop *BusStop
	err := s.withDB(func(conn *sql.DB) error {
		row := conn.QueryRowContext(ctx,
			`SELECT `+busStopColumns+` FROM view_bus_stops WHERE stopCode = ?`, stopCode)
		scanned, err := scanBusStop(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrStopNotFound, stopCode)
		}
		if err != nil {
			return fmt.Errorf("querying bus stop %s: %w", stopCode, err)
		}
		stop = scanned
		return nil
	})
	return stop, err
}

// BusStops returns the stops that exist among stopCodes, in the order given.
func (s *Store) BusStops(ctx context.Context, stopCodes []string) ([]BusStop, error) {
	if len(stopCodes) == 0 {
		return []BusStop{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(stopCodes)), ",")
	args := make([]interface{}, len(stopCodes))
	for i, code := range stopCodes {
		args[i] = code
	}

	byCode := make(map[string]BusStop, len(stopCodes))
	err := s.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT `+busStopColumns+` FROM view_bus_stops WHERE stopCode IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("querying bus stops: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			stop, err := scanBusStop(rows)
			if err != nil {
				return fmt.Errorf("scanning bus stop: %w", err)
			}
			byCode[stop.StopCode] = *stop
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	stops := make([]BusStop, 0, len(byCode))
	for _, code := range stopCodes {
		if stop, ok := byCode[code]; ok {
			stops = append(stops, stop)
		}
	}
	return stops, nil
}

// SearchStops matches term against stop name, code and locality.
func (s *Store) SearchStops(ctx context.Context, term string, limit int) ([]BusStop, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []BusStop{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + escapeLike(term) + "%"
	stops := []BusStop{}
	err := s.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT `+busStopColumns+` FROM view_bus_stops
			WHERE stopName LIKE ? ESCAPE '\' OR stopCode LIKE ? ESCAPE '\' OR locality LIKE ? ESCAPE '\'
			ORDER BY stopName, stopCode
			LIMIT ?`, pattern, pattern, pattern, limit)
		if err != nil {
			return fmt.Errorf("searching bus stops: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			stop, err := scanBusStop(rows)
			if err != nil {
				return fmt.Errorf("scanning bus stop: %w", err)
			}
			stops = append(stops, *stop)
		}
		return rows.Err()
	})
	return stops, err
}

// NearbyStops returns stops within the radius, nearest first.
func (s *Store) NearbyStops(ctx context.Context, q NearbyQuery) ([]NearbyStop, error) {
	if q.RadiusMetres <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %f", q.RadiusMetres)
	}

	minLat, maxLat, minLon, maxLon := boundingBox(q.Latitude, q.Longitude, q.RadiusMetres)

	var candidates []BusStop
	err := s.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT `+busStopColumns+` FROM view_bus_stops
			WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`,
			minLat, maxLat, minLon, maxLon)
		if err != nil {
			return fmt.Errorf("querying nearby stops: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			stop, err := scanBusStop(rows)
			if err != nil {
				return fmt.Errorf("scanning bus stop: %w", err)
			}
			candidates = append(candidates, *stop)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	nearby := []NearbyStop{}
	for _, stop := range candidates {
		if len(q.Services) > 0 && !servesAny(stop.Services, q.Services) {
			continue
		}
		d := distanceMetres(q.Latitude, q.Longitude, stop.Latitude, stop.Longitude)
		if d > q.RadiusMetres {
			continue
		}
		nearby = append(nearby, NearbyStop{BusStop: stop, DistanceMetres: d})
	}

	slices.SortFunc(nearby, func(a, b NearbyStop) int {
		switch {
		case a.DistanceMetres < b.DistanceMetres:
			return -1
		case a.DistanceMetres > b.DistanceMetres:
			return 1
		}
		return strings.Compare(a.StopCode, b.StopCode)
	})

	if q.Limit > 0 && len(nearby) > q.Limit {
		nearby = nearby[:q.Limit]
	}
	return nearby, nil
}

// ServicesForStop lists the services calling at a stop in rider order.
func (s *Store) ServicesForStop(ctx context.Context, stopCode string) ([]string, error) {
	services := []string{}
	err := s.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT DISTINCT serviceName FROM service_stops WHERE stopCode = ?`, stopCode)
		if err != nil {
			return fmt.Errorf("querying services for stop %s: %w", stopCode, err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("scanning service name: %w", err)
			}
			services = append(services, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	livetimes.SortServiceNames(services)
	return services, nil
}

func (s *Store) Services(ctx context.Context) ([]Service, error) {
	services := []Service{}
	err := s.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `SELECT name, description, colour FROM view_services`)
		if err != nil {
			return fmt.Errorf("querying services: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				svc         Service
				description sql.NullString
				colour      sql.NullString
			)
			if err := rows.Scan(&svc.Name, &description, &colour); err != nil {
				return fmt.Errorf("scanning service: %w", err)
			}
			svc.Description = description.String
			svc.Colour = colour.String
			services = append(services, svc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(services, func(a, b Service) int {
		return livetimes.CompareServiceNames(a.Name, b.Name)
	})
	return services, nil
}

// ServicePoints returns the route line of a service ordered along the route.
func (s *Store) ServicePoints(ctx context.Context, serviceName string) ([]ServicePoint, error) {
	points := []ServicePoint{}
	err := s.withDB(func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx,
			`SELECT serviceName, stopCode, orderValue, chainage, latitude, longitude
			FROM view_service_points
			WHERE serviceName = ?
			ORDER BY chainage, orderValue`, serviceName)
		if err != nil {
			return fmt.Errorf("querying service points for %s: %w", serviceName, err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p        ServicePoint
				stopCode sql.NullString
			)
			if err := rows.Scan(&p.ServiceName, &stopCode, &p.Order, &p.Chainage, &p.Latitude, &p.Longitude); err != nil {
				return fmt.Errorf("scanning service point: %w", err)
			}
			p.StopCode = stopCode.String
			points = append(points, p)
		}
		return rows.Err()
	})
	return points, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBusStop(row scanner) (*BusStop, error) {
	var (
		stop        BusStop
		orientation sql.NullInt64
		locality    sql.NullString
		listing     sql.NullString
	)
	if err := row.Scan(&stop.StopCode, &stop.StopName, &stop.Latitude, &stop.Longitude, &orientation, &locality, &listing); err != nil {
		return nil, err
	}
	stop.Orientation = int(orientation.Int64)
	stop.Locality = locality.String
	stop.Services = splitServiceListing(listing.String)
	return &stop, nil
}

func splitServiceListing(listing string) []string {
	services := []string{}
	for _, name := range strings.Split(listing, ",") {
		if name = strings.TrimSpace(name); name != "" && !slices.Contains(services, name) {
			services = append(services, name)
		}
	}
	livetimes.SortServiceNames(services)
	return services
}

func servesAny(services, wanted []string) bool {
	for _, w := range wanted {
		if slices.Contains(services, w) {
			return true
		}
	}
	return false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const earthRadiusMetres = 6371000.0

// distanceMetres is the haversine distance between two points.
func distanceMetres(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadiusMetres * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// boundingBox returns a lat/lon box enclosing the circle, for index lookups.
func boundingBox(lat, lon, radius float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radius / earthRadiusMetres * 180 / math.Pi
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	dLon := dLat / cos
	return lat - dLat, lat + dLat, lon - dLon, lon + dLon
}
