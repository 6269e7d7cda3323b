// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and conversions
// between schedule models and lightweight wire representations. The server
// embeds the daemon; the CLI dials the socket and fails fast when the daemon
// is offline.
package ipc
