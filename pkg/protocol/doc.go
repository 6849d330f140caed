// Package protocol defines the JSON-RPC 2.0 message subset spoken between
// the gateway and upstream MCP servers: requests, notifications, responses,
// and the error object, plus the MCP method names the gateway understands.
// It is deliberately not a general JSON-RPC implementation; batching and
// server-initiated requests are outside the gateway's contract.
package protocol
