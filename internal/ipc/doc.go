// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI and the page collaborator bridge.
//
// It owns socket lifecycle management, request/response DTOs, and the loose
// decoding of crawl payloads scraped from display markup. The server embeds
// the daemon while the client wraps calls in typed helpers so CLI commands
// fail fast when the daemon is offline.
package ipc
