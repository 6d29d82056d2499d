// Package prerequisites checks that the host tools the maintenance
// sequence relies on are installed.
package prerequisites
