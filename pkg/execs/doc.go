// Package execs renders rule-group command tokens into a single shell
// command line and executes it. Rendering is a pure function with a
// round-trip guarantee, kept separate from process spawning so it can be
// tested on its own.
package execs
