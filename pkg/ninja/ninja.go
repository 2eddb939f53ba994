// Package ninja defines the interface to the build-description emitter. The
// emitter itself is an external collaborator; this package only fixes the
// contract the core hands it: the evaluated environment and the dependency
// graph roots.
package ninja

import (
	"errors"

	"src.kati.dev/pkg/dep"
	"src.kati.dev/pkg/eval"
)

// Generator emits a lower-level build description for the given graph.
//
// Implementations are expected to put the evaluator into avoid-I/O mode
// while expanding recipes, collect the deferred output via
// [eval.Evaler.DelayedOutputs], and honor the per-node pool, depfile and
// restat annotations.
type Generator interface {
	Generate(ev *eval.Evaler, nodes []*dep.DepNode) error
}

// ErrNotLinked is returned by the placeholder used when no generator is
// compiled in.
var ErrNotLinked = errors.New("no build-description generator is linked into this binary")

// Unavailable is the placeholder Generator.
type Unavailable struct{}

// Generate always fails with ErrNotLinked.
func (Unavailable) Generate(*eval.Evaler, []*dep.DepNode) error { return ErrNotLinked }
