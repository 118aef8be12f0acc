// Package builtin registers the environments shipped with envgate.
package builtin

import (
	"github.com/nextlevelbuilder/envgate/internal/env"
	"github.com/nextlevelbuilder/envgate/internal/env/pendulum"
	"github.com/nextlevelbuilder/envgate/internal/env/rps"
)

// Registry returns a registry holding every built-in environment.
func Registry() *env.Registry {
	r := env.NewRegistry()
	r.Register(rps.Name, rps.Factory)
	r.Register(pendulum.Name, pendulum.Factory)
	return r
}
