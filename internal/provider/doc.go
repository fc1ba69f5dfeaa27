// Package provider turns a font project configuration into a recipe.
//
// A configuration names source files and build switches. A recipe provider
// reads the sources (designspace axes, masters and instances, small-cap
// features) and writes the chain of operations for every font the project
// ships. Explicit recipe entries in the configuration replace or extend the
// generated targets.
//
// Configuration files are YAML or TOML, validated against an embedded CUE
// schema before they are decoded.
package provider
