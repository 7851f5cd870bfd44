package game

import "math/rand/v2"

// archetypes is indexed by Kind; slot 0 is unused.
var archetypes = [...]struct {
	shape Shape
	color string
}{
	KindI: {Shape{{1, 1, 1, 1}}, "#00f0f0"},
	KindJ: {Shape{{1, 0, 0}, {1, 1, 1}}, "#0000f0"},
	KindL: {Shape{{0, 0, 1}, {1, 1, 1}}, "#f0a000"},
	KindO: {Shape{{1, 1}, {1, 1}}, "#f0f000"},
	KindS: {Shape{{0, 1, 1}, {1, 1, 0}}, "#00f000"},
	KindT: {Shape{{0, 1, 0}, {1, 1, 1}}, "#a000f0"},
	KindZ: {Shape{{1, 1, 0}, {0, 1, 1}}, "#f00000"},
}

// Archetype returns a fresh copy of the spawn shape of k.
func Archetype(k Kind) Shape {
	if !k.Valid() {
		return nil
	}
	return archetypes[k].shape.Clone()
}

// Source picks piece kinds. IntN must return a value in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// globalSource draws from the math/rand/v2 top-level generator, which is safe
// for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// SeededSource returns a deterministic Source; equal seeds give equal piece
// sequences.
func SeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
