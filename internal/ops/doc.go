// Package ops is the operation registry: the closed set of named operations
// a recipe may use, each with its input arity, in-place flag and typed
// argument schema.
//
// Operations are opaque to the rest of the system. Most of them run an
// external command (fontmake, gftools-fix-font, ttfautohint, ...) through a
// Runner; a few run in-process. Arguments are bound and type-checked when the
// graph is built so a typo fails the build before any file is touched.
//
// The registry never retries a failed operation.
package ops
