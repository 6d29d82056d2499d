// Package confirm implements the Confirmation Gate, the single operator
// checkpoint before any mutating call.
//
// The [Gate] renders the health report and resolved configuration, then
// accepts only an exact token. Terminals get a huh input form; anything else
// (pipes, automation) reads one line from stdin. Dry-run sessions are
// auto-accepted without prompting.
package confirm
