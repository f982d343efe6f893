package generator

import (
	"tryon/internal/config"
	"tryon/internal/entity"
)

// Registry maps provider kinds to their generator implementations.
type Registry map[string]Generator

// NewRegistry builds the full provider set from configuration. Providers with
// missing credentials are still registered; they fail at call time with a
// clear error, which keeps the kind set stable for validation.
func NewRegistry(cfg config.Config) Registry {
	return Registry{
		entity.ProviderGemini:    NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiEndpoint),
		entity.ProviderVWFlux:    NewViWearGenerator(entity.ProviderVWFlux, cfg.ViWearFluxEndpoint, cfg.ViWearAPIToken),
		entity.ProviderVWCatVTON: NewViWearGenerator(entity.ProviderVWCatVTON, cfg.ViWearCatVTONEndpoint, cfg.ViWearAPIToken),
		entity.ProviderFitroom:   NewFitroomGenerator(cfg.FitroomAPIKey, cfg.FitroomBaseURL),
	}
}

// Lookup returns the generator for kind, or nil when unknown.
func (r Registry) Lookup(kind string) Generator {
	return r[kind]
}
