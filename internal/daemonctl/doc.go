// Package daemonctl orchestrates the thornd process from the CLI side:
// launching it detached, waiting for its IPC socket, requesting shutdown, and
// force-killing it when a graceful stop stalls.
package daemonctl
