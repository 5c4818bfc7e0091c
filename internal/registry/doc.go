// Package registry implements a typed, grouped configuration registry.
//
// Options are declared per group with a kind (string, integer, boolean,
// string list, string map) and a default. Parse resolves each option from,
// in increasing precedence:
//
//  1. the declared default
//  2. a YAML configuration file whose sections are groups
//  3. environment variables named <PREFIX>_<GROUP>_<NAME>
//  4. command-line flags --<group>-<name>, or --<name> for CLI options
//
// String values and list elements may reference other options as %(name)s,
// looked up in the same group and then in the default group; %(confdir)s is
// the directory of the loaded file. Write %% for a literal '%'. Secret
// options are never expanded.
//
// After Parse the resolved values form an immutable snapshot that any number
// of goroutines may read. Parse runs once; Reset returns the registry to the
// unparsed state.
package registry
