// Package supervisor owns the external messaging daemon process: launch with
// the in-memory secret piped over stdin, readiness polling, liveness
// monitoring, and a restart verdict when the process dies. The secret never
// touches argv or the environment.
package supervisor
