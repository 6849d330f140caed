// Package mcpproxy executes MCP protocol calls against independently
// configured upstream servers over three carriers: streaming HTTP with
// session affinity, Server-Sent Events, and child-process stdio. The Client
// owns every piece of per-upstream runtime state (HTTP session tokens,
// spawned child processes, circuit breakers) and guarantees deterministic
// teardown: Shutdown reaps every child it ever started.
//
// # Core entry points
//
//   - Client is the long-lived orchestration type. Construct it with
//     NewClient from a map of upstream ids to transport configurations.
//   - TransportConfig (HTTPConfig / SSEConfig / StdioConfig) declares how
//     each upstream is reached; AuthConfig variants attach credentials.
//   - Typed helpers (ListTools, CallTool, ListResources, ReadResource,
//     ListPrompts, GetPrompt) decode results into go-sdk mcp payload types.
//     Each has a Guarded variant that consults the upstream's circuit
//     breaker and a WithRetry variant that additionally retries transient
//     transport failures with jittered exponential backoff.
//
// Errors are classified: transient transport failures are retryable,
// upstream protocol errors and process faults are not, and a circuit-breaker
// rejection is a distinct signal from anything the upstream itself produced.
package mcpproxy
