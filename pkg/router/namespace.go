package router

import (
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Separator joins the upstream id and the native tool or prompt name.
const Separator = ":"

// ResourcePrefix is the scheme under which upstream resource URIs are
// re-published.
const ResourcePrefix = "gateway://"

// PrefixToolName qualifies a native tool name with its upstream id.
func PrefixToolName(upstream, tool string) string {
	return upstream + Separator + tool
}

// ParseToolName splits a gateway-qualified tool name into upstream id and
// native name. The split happens on the first separator only, so native
// names containing the separator survive the round trip.
func ParseToolName(name string) (upstream, tool string, ok bool) {
	upstream, tool, ok = strings.Cut(name, Separator)
	if !ok || upstream == "" || tool == "" {
		return "", "", false
	}
	return upstream, tool, true
}

// PrefixPromptName qualifies a native prompt name with its upstream id.
func PrefixPromptName(upstream, prompt string) string {
	return PrefixToolName(upstream, prompt)
}

// ParsePromptName is ParseToolName for prompt identifiers.
func ParsePromptName(name string) (upstream, prompt string, ok bool) {
	return ParseToolName(name)
}

// PrefixResourceURI re-publishes a native resource URI under the gateway
// scheme, keyed by upstream id.
func PrefixResourceURI(upstream, uri string) string {
	return ResourcePrefix + upstream + "/" + uri
}

// ParseResourceURI recovers the upstream id and the native URI from a
// gateway resource URI. The remainder is split on the first "/" only,
// preserving native URIs that carry their own scheme and slashes.
func ParseResourceURI(uri string) (upstream, original string, ok bool) {
	rest, found := strings.CutPrefix(uri, ResourcePrefix)
	if !found {
		return "", "", false
	}
	upstream, original, ok = strings.Cut(rest, "/")
	if !ok || upstream == "" || original == "" {
		return "", "", false
	}
	return upstream, original, true
}

// attributeDescription prefixes a description with the upstream marker so
// merged listings stay attributable.
func attributeDescription(upstream, description string) string {
	marker := fmt.Sprintf("[%s]", upstream)
	if description == "" {
		return marker
	}
	return marker + " " + description
}

// PrefixTools returns a rewritten copy of tools with gateway-qualified names
// and attributed descriptions. The inputs are not mutated.
func PrefixTools(upstream string, tools []*mcp.Tool) []*mcp.Tool {
	out := make([]*mcp.Tool, 0, len(tools))
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		clone := *tool
		clone.Name = PrefixToolName(upstream, tool.Name)
		clone.Description = attributeDescription(upstream, tool.Description)
		out = append(out, &clone)
	}
	return out
}

// PrefixResources returns a rewritten copy of resources with gateway URIs
// and attributed descriptions.
func PrefixResources(upstream string, resources []*mcp.Resource) []*mcp.Resource {
	out := make([]*mcp.Resource, 0, len(resources))
	for _, res := range resources {
		if res == nil {
			continue
		}
		clone := *res
		clone.URI = PrefixResourceURI(upstream, res.URI)
		clone.Description = attributeDescription(upstream, res.Description)
		out = append(out, &clone)
	}
	return out
}

// PrefixPrompts returns a rewritten copy of prompts with gateway-qualified
// names and attributed descriptions.
func PrefixPrompts(upstream string, prompts []*mcp.Prompt) []*mcp.Prompt {
	out := make([]*mcp.Prompt, 0, len(prompts))
	for _, prompt := range prompts {
		if prompt == nil {
			continue
		}
		clone := *prompt
		clone.Name = PrefixPromptName(upstream, prompt.Name)
		clone.Description = attributeDescription(upstream, prompt.Description)
		out = append(out, &clone)
	}
	return out
}

// RouteToolCall parses a gateway-qualified tool name and resolves the target
// upstream in one step. The zero value and false are returned when either
// parsing or the lookup fails; callers treat that as an unknown route.
func RouteToolCall[T any](name string, upstreams map[string]T) (upstreamID, tool string, target T, ok bool) {
	var zero T
	upstreamID, tool, ok = ParseToolName(name)
	if !ok {
		return "", "", zero, false
	}
	target, ok = upstreams[upstreamID]
	if !ok {
		return "", "", zero, false
	}
	return upstreamID, tool, target, true
}

// RouteResourceRead parses a gateway resource URI and resolves the target
// upstream in one step.
func RouteResourceRead[T any](uri string, upstreams map[string]T) (upstreamID, original string, target T, ok bool) {
	var zero T
	upstreamID, original, ok = ParseResourceURI(uri)
	if !ok {
		return "", "", zero, false
	}
	target, ok = upstreams[upstreamID]
	if !ok {
		return "", "", zero, false
	}
	return upstreamID, original, target, true
}

// RoutePromptGet parses a gateway-qualified prompt name and resolves the
// target upstream in one step.
func RoutePromptGet[T any](name string, upstreams map[string]T) (upstreamID, prompt string, target T, ok bool) {
	return RouteToolCall(name, upstreams)
}
