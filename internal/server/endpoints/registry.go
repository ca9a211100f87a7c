// Package endpoints defines the HTTP API surface of the lexocr server.
// Each endpoint doubles as a CLI command that calls the running server.
package endpoints

import (
	"github.com/lexsuite/lexocr/internal/api"
)

// All returns every endpoint the server exposes.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
		&ExtractEndpoint{},
		&ListRunsEndpoint{},
		&GetRunEndpoint{},
		&AnalyzeRunEndpoint{},
	}
}
