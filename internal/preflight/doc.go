// Package preflight validates the environment before the daemon brings up
// the supervised messaging process: the Java runtime, the briar-headless jar,
// data directory access and free space, and the HTTP API bind address.
package preflight
