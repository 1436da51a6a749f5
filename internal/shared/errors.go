package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Upstream catalog errors
	ErrUpstream           = fmt.Errorf("upstream API request failed")
	ErrArtistNotFound     = fmt.Errorf("artist not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Persistence errors
	ErrStore            = fmt.Errorf("catalog store failure")
	ErrPartialIngestion = fmt.Errorf("ingestion incomplete")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
