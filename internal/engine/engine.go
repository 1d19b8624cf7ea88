package engine

import (
	"github.com/huangsam/vegchange/core/registry"
	"github.com/huangsam/vegchange/internal/contract"
	"github.com/huangsam/vegchange/schema"
)

// New builds the engine selected by cfg. The memory engine is seeded with demo scenes for
// every period of the catalogue.
func New(cfg *contract.Config, reg *registry.Registry) (contract.ComputeEngine, error) {
	switch cfg.EngineBackend {
	case schema.RemoteEngine:
		return NewRemoteEngine(RemoteConfig{
			BaseURL:        cfg.EngineURL,
			Token:          cfg.EngineToken,
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
		})
	case schema.MemoryEngine, "":
		m := NewMemoryEngine()
		scenes, err := DemoScenes(reg, cfg.Catalogue)
		if err != nil {
			return nil, err
		}
		m.AddScenes(scenes...)
		return m, nil
	default:
		return nil, contract.NewConfigurationError("engine", "unknown engine '%s'", cfg.EngineBackend)
	}
}
