package updater

import "errors"

var (
	// ErrChecksumMismatch means the downloaded file does not match the
	// checksum the endpoint advertised.
	ErrChecksumMismatch = errors.New("downloaded database checksum mismatch")
	// ErrInvalidResponse means the endpoint answered with something unusable.
	ErrInvalidResponse = errors.New("invalid database version response")
)

// DatabaseVersion describes the database the server currently publishes.
type DatabaseVersion struct {
	SchemaName string `json:"db_schema_version"`
	TopologyID string `json:"topo_id"`
	URL        string `json:"db_url"`
	Checksum   string `json:"checksum"`
}

type Status int

const (
	StatusUpToDate Status = iota
	StatusUpdateAvailable
	StatusUpdated
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up_to_date"
	case StatusUpdateAvailable:
		return "update_available"
	case StatusUpdated:
		return "updated"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Result is the outcome of a check. Version is set when the server's
// database was looked at and differs from the local one.
type Result struct {
	Status  Status
	Version *DatabaseVersion
	// Reason says why a run was skipped.
	Reason string
}
