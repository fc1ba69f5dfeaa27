// Package recipe is the typed form of a build recipe: a mapping from output
// target paths to ordered chains of steps.
//
// A chain starts with a source step, continues with operation steps that each
// produce a new artifact, may switch to another source mid-chain, and may end
// with postprocess steps that modify the finished target in place. Recipes
// are immutable once parsed; the compiler never writes back into them.
package recipe
