// Package router makes the flat MCP namespace safe to multiplex across many
// upstream servers. Tool and prompt names are rewritten as
// "{upstream}:{name}" and resource URIs as "gateway://{upstream}/{uri}";
// parsing always splits on the first separator so native identifiers may
// themselves contain it. The package also classifies every protocol method
// as routed to one upstream, aggregated across all of them, or handled by
// the gateway itself.
package router
