package busstop

// Raw tables shipped by the server:
//
//	database_info(current_topo_id, updateTS)
//	bus_stops(_id, stopCode, stopName, x, y, orientation, locality)
//	service(_id, name, desc, hex_colour)
//	service_stops(_id, stopCode, serviceName)
//	service_point(_id, service_id, stop_id, order_value, chainage, latitude, longitude)
//
// Everything below is generated locally after download.

// indexStatements speed up reads. Failing to create them is tolerated.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS bus_stops_stop_code_index ON bus_stops(stopCode)`,
	`CREATE INDEX IF NOT EXISTS bus_stops_location_index ON bus_stops(x, y)`,
	`CREATE INDEX IF NOT EXISTS service_stops_stop_code_index ON service_stops(stopCode)`,
	`CREATE INDEX IF NOT EXISTS service_stops_service_name_index ON service_stops(serviceName)`,
	`CREATE INDEX IF NOT EXISTS service_point_service_index ON service_point(service_id, chainage, order_value)`,
}

// viewStatements are required by every read query.
var viewStatements = []string{
	`CREATE VIEW IF NOT EXISTS view_bus_stops AS
		SELECT b._id AS _id,
			b.stopCode AS stopCode,
			b.stopName AS stopName,
			b.x AS latitude,
			b.y AS longitude,
			b.orientation AS orientation,
			b.locality AS locality,
			(SELECT group_concat(ss.serviceName, ',')
				FROM service_stops ss
				WHERE ss.stopCode = b.stopCode) AS serviceListing
		FROM bus_stops b`,
	`CREATE VIEW IF NOT EXISTS view_services AS
		SELECT s._id AS _id,
			s.name AS name,
			s."desc" AS description,
			s.hex_colour AS colour
		FROM service s`,
	`CREATE VIEW IF NOT EXISTS view_service_points AS
		SELECT sp._id AS _id,
			s.name AS serviceName,
			b.stopCode AS stopCode,
			sp.order_value AS orderValue,
			sp.chainage AS chainage,
			sp.latitude AS latitude,
			sp.longitude AS longitude
		FROM service_point sp
		JOIN service s ON sp.service_id = s._id
		LEFT JOIN bus_stops b ON sp.stop_id = b._id`,
}

const versionQuery = `SELECT current_topo_id, updateTS FROM database_info LIMIT 1`
