package httpapi

import (
	"errors"

	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
)

// ErrMissingService is returned when a required port is not provided.
var ErrMissingService = errors.New("httpapi: indexing and search services are required")

// Ports aggregates the driving ports the API serves.
type Ports struct {
	// Indexing accepts content and reports status.
	Indexing driving.IndexingService

	// Search answers queries.
	Search driving.SearchService

	// Settings persists the kill switch. Optional; without it PUT /indexing
	// only flips the in-process switch.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Indexing == nil || p.Search == nil {
		return ErrMissingService
	}
	return nil
}
