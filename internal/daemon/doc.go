// Package daemon ties the scheduler engine, the messaging daemon supervisor,
// and the HTTP API together behind a single-instance file lock.
package daemon
