// Package report renders build graphs and run results for people and tools:
// the resolved recipe, graph exports in JSON, DOT and text, and the run
// summary printed after a build.
package report
