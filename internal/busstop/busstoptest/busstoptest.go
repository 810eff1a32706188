// Package busstoptest builds small reference databases for tests.
package busstoptest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

var rawSchema = []string{
	`CREATE TABLE database_info (current_topo_id TEXT, updateTS INTEGER)`,
	`CREATE TABLE bus_stops (_id INTEGER PRIMARY KEY, stopCode TEXT UNIQUE NOT NULL, stopName TEXT NOT NULL,
		x REAL NOT NULL, y REAL NOT NULL, orientation INTEGER, locality TEXT)`,
	`CREATE TABLE service (_id INTEGER PRIMARY KEY, name TEXT NOT NULL, "desc" TEXT, hex_colour TEXT)`,
	`CREATE TABLE service_stops (_id INTEGER PRIMARY KEY, stopCode TEXT NOT NULL, serviceName TEXT NOT NULL)`,
	`CREATE TABLE service_point (_id INTEGER PRIMARY KEY, service_id INTEGER NOT NULL, stop_id INTEGER,
		order_value INTEGER, chainage INTEGER, latitude REAL, longitude REAL)`,
}

// Stop is a fixture bus stop.
type Stop struct {
	Code      string
	Name      string
	Latitude  float64
	Longitude float64
	Locality  string
	Services  []string
}

// Fixture describes the content of a generated database.
type Fixture struct {
	TopologyID string
	UpdatedAt  time.Time
	Stops      []Stop
	// Services maps a service name to its description.
	Services map[string]string
}

// DefaultStops are a handful of stops around Edinburgh's Princes Street.
var DefaultStops = []Stop{
	{Code: "36232896", Name: "Princes Street", Latitude: 55.9520, Longitude: -3.1960, Locality: "City Centre", Services: []string{"10", "X5", "9"}},
	{Code: "36232897", Name: "Waverley Bridge", Latitude: 55.9515, Longitude: -3.1915, Locality: "City Centre", Services: []string{"22"}},
	{Code: "36237926", Name: "Ocean Terminal", Latitude: 55.9810, Longitude: -3.1770, Locality: "Leith", Services: []string{"22", "10"}},
}

// DefaultFixture is a small but complete database at the given topology.
func DefaultFixture(topologyID string) Fixture {
	return Fixture{
		TopologyID: topologyID,
		UpdatedAt:  time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
		Stops:      DefaultStops,
		Services: map[string]string{
			"9":  "Colinton - Fort Kinnaird",
			"10": "Western Harbour - Torphin",
			"22": "Ocean Terminal - Gyle Centre",
			"X5": "Fort Kinnaird - Gyle Centre",
		},
	}
}

// Build writes a raw reference database for f to path, with no views or
// indexes, the way the server publishes it.
func Build(t testing.TB, path string, f Fixture) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture dir: %v", err)
	}

	conn, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	defer conn.Close()

	for _, stmt := range rawSchema {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("creating fixture schema: %v", err)
		}
	}

	if _, err := conn.Exec(`INSERT INTO database_info (current_topo_id, updateTS) VALUES (?, ?)`,
		f.TopologyID, f.UpdatedAt.UnixMilli()); err != nil {
		t.Fatalf("inserting database_info: %v", err)
	}

	serviceIDs := map[string]int64{}
	for name, desc := range f.Services {
		res, err := conn.Exec(`INSERT INTO service (name, "desc", hex_colour) VALUES (?, ?, ?)`, name, desc, "#"+name)
		if err != nil {
			t.Fatalf("inserting service: %v", err)
		}
		serviceIDs[name], _ = res.LastInsertId()
	}

	for i, stop := range f.Stops {
		res, err := conn.Exec(`INSERT INTO bus_stops (stopCode, stopName, x, y, orientation, locality) VALUES (?, ?, ?, ?, ?, ?)`,
			stop.Code, stop.Name, stop.Latitude, stop.Longitude, i%8, stop.Locality)
		if err != nil {
			t.Fatalf("inserting bus stop: %v", err)
		}
		stopID, _ := res.LastInsertId()

		for _, svc := range stop.Services {
			if _, err := conn.Exec(`INSERT INTO service_stops (stopCode, serviceName) VALUES (?, ?)`, stop.Code, svc); err != nil {
				t.Fatalf("inserting service stop: %v", err)
			}
			if id, ok := serviceIDs[svc]; ok {
				if _, err := conn.Exec(`INSERT INTO service_point (service_id, stop_id, order_value, chainage, latitude, longitude)
					VALUES (?, ?, ?, ?, ?, ?)`, id, stopID, i, i*100, stop.Latitude, stop.Longitude); err != nil {
					t.Fatalf("inserting service point: %v", err)
				}
			}
		}
	}
}

// BuildFile writes a fixture into dir under name and returns its path.
func BuildFile(t testing.TB, dir, name string, f Fixture) string {
	t.Helper()
	path := filepath.Join(dir, name)
	Build(t, path, f)
	return path
}
