// Package livetimes fetches and parses live departures from the bus tracker
// web service.
package livetimes

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication   = errors.New("bus tracker rejected the API key")
	ErrInvalidParameter = errors.New("bus tracker rejected a request parameter")
	ErrServerError      = errors.New("bus tracker failed to process the request")
	ErrSystemOverloaded = errors.New("bus tracker is overloaded")
	ErrMaintenance      = errors.New("bus tracker is down for maintenance")
	ErrInvalidData      = errors.New("bus tracker returned invalid data")
	ErrUnknown          = errors.New("bus tracker returned an unknown error")
)

// Fault codes returned in the faultcode field of an error body.
const (
	faultInvalidAppKey     = "INVALID_APP_KEY"
	faultInvalidParameter  = "INVALID_PARAMETER"
	faultProcessingError   = "PROCESSING_ERROR"
	faultSystemOverload    = "SYSTEM_OVERLOAD"
	faultSystemMaintenance = "SYSTEM_MAINTENANCE"
)

func faultError(code, message string) error {
	var base error
	switch code {
	case faultInvalidAppKey:
		base = ErrAuthentication
	case faultInvalidParameter:
		base = ErrInvalidParameter
	case faultProcessingError:
		base = ErrServerError
	case faultSystemOverload:
		base = ErrSystemOverloaded
	case faultSystemMaintenance:
		base = ErrMaintenance
	default:
		base = ErrUnknown
	}
	if message == "" {
		return fmt.Errorf("%w (%s)", base, code)
	}
	return fmt.Errorf("%w (%s): %s", base, code, message)
}
