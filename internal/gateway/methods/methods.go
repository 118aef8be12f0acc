package methods

import (
	"github.com/nextlevelbuilder/envgate/internal/config"
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/internal/gateway"
)

// RegisterAll wires every environment handler into router.
func RegisterAll(router *gateway.MethodRouter, registry *env.Registry, cfg *config.Config) {
	NewEnvMethods(registry, cfg).Register(router)
	NewAgentsMethods().Register(router)
	NewStepMethods().Register(router)
}
